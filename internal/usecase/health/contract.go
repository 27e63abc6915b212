package health

import "context"

// UpstreamChecker checks catalog backend availability.
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks response cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
