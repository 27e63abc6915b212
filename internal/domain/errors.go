package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport signals a network or HTTP failure talking to the catalog backend.
	ErrTransport = errors.New("transport error")
	// ErrUpstreamGraphQL signals that the backend answered with GraphQL errors and no data.
	ErrUpstreamGraphQL = errors.New("upstream graphql error")
	// ErrDecode signals a response that is missing expected fields.
	ErrDecode = errors.New("decode error")
	// ErrUnknownQuery signals a query id with no registered document.
	ErrUnknownQuery = errors.New("unknown query")
	// ErrUndeclaredVariable signals a variable the query document does not declare.
	ErrUndeclaredVariable = errors.New("undeclared query variable")
	// ErrMissingVariable signals a required query variable that was not supplied.
	ErrMissingVariable = errors.New("missing query variable")
	// ErrInvalidRefinement signals a malformed refinement snapshot.
	ErrInvalidRefinement = errors.New("invalid refinement")
	// ErrSessionNotFound signals a missing page session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions signals that the session registry is full.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrPageClosed signals an operation on a closed page.
	ErrPageClosed = errors.New("page closed")
)

// UpstreamStatusError wraps ErrTransport with the HTTP status returned by the backend.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d", ErrTransport.Error(), e.StatusCode)
}

func (e *UpstreamStatusError) Unwrap() error { return ErrTransport }

// NewUpstreamStatus creates an upstream status error.
func NewUpstreamStatus(statusCode int) error {
	return &UpstreamStatusError{StatusCode: statusCode}
}
