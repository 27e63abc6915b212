package fetch

import (
	"context"

	"github.com/kailas-cloud/listingpage/internal/domain/query"
)

// Executor sends a named query with variables and returns the response data document.
// Implementations own transport concerns: retries, timeouts, caching and de-duplication.
type Executor interface {
	Execute(ctx context.Context, id query.ID, variables map[string]any) ([]byte, error)
}

// Decoder turns a response data document into a typed result.
type Decoder[T any] func(data []byte) (T, error)
