package refinement

import "sync"

// Reader exposes the current refinement snapshot.
type Reader interface {
	Snapshot() State
}

// Source holds the canonical refinement state for one page lifetime.
// Writers (address bar, form state) call Set; the orchestrator only reads.
type Source struct {
	mu       sync.RWMutex
	current  State
	baseline State
}

var _ Reader = (*Source)(nil)

// NewSource creates a source whose baseline is the initial snapshot.
func NewSource(initial State) *Source {
	return &Source{current: initial.Clone(), baseline: initial.Clone()}
}

// Snapshot returns a copy of the current state.
func (s *Source) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Phrase returns the current free-text phrase.
func (s *Source) Phrase() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Phrase
}

// Sort returns the current sort order, or nil.
func (s *Source) Sort() *Sort {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone().Sort
}

// Filters returns a copy of the selected filter values.
func (s *Source) Filters() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone().Filters
}

// ChangedSinceLoad reports whether phrase, filters or sort differ from the
// snapshot taken when the page was loaded.
func (s *Source) ChangedSinceLoad() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.current.SameRefinement(s.baseline)
}

// Set replaces the current state.
func (s *Source) Set(st State) {
	s.mu.Lock()
	s.current = st.Clone()
	s.mu.Unlock()
}

// Rebase starts a new page lifetime with st as both current and baseline.
func (s *Source) Rebase(st State) {
	s.mu.Lock()
	s.current = st.Clone()
	s.baseline = st.Clone()
	s.mu.Unlock()
}
