package fetch

// State is what a fetcher exposes to one render.
//
// A suppressed fetcher (nil variables) reports the zero State: no data,
// not loading, no error.
type State[T any] struct {
	// Data is valid when HasData is set.
	Data    T
	HasData bool
	// Stale marks Data as belonging to the previous request key.
	Stale bool
	// IsLoading is set while no data for the current key has arrived.
	IsLoading bool
	// IsValidating is set while any request for the current key is in flight.
	IsValidating bool
	Err          error
}

// Fresh reports whether Data belongs to the current request.
func (s State[T]) Fresh() bool { return s.HasData && !s.Stale }
