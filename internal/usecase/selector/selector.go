// Package selector decides which fetch strategy is authoritative for a render.
package selector

import (
	"sync"

	"github.com/kailas-cloud/listingpage/internal/domain/fetchmode"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
)

// Input is everything one render observes.
type Input struct {
	Category            string
	PreferSingleRequest bool
	Refinement          refinement.State
}

// Decision is the selector's output for one render.
type Decision struct {
	Mode       fetchmode.Mode
	Interacted bool
	// Frozen is the snapshot captured when the current lifetime began.
	// Set only in Unified mode; the unified request always uses it.
	Frozen *refinement.State
	// Generation identifies the current lifetime. It changes on every reset.
	Generation uint64
	// Reset reports that this observation started a new lifetime.
	Reset bool
}

// state is replaced as a whole on reset so the interaction flag and the
// frozen snapshot can never belong to different lifetimes.
type state struct {
	observed   bool
	category   string
	prefer     bool
	interacted bool
	frozen     refinement.State
	previous   refinement.State
	generation uint64
}

// Selector is the reducer owning the interaction flag and frozen variables.
type Selector struct {
	mu sync.Mutex
	st state
}

// New creates a selector with no observations.
func New() *Selector {
	return &Selector{}
}

// Observe folds one render's input into the reducer and returns the decision.
func (s *Selector) Observe(in Input) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	reset := !s.st.observed || in.Category != s.st.category || in.PreferSingleRequest != s.st.prefer
	if reset {
		s.st = state{
			observed:   true,
			category:   in.Category,
			prefer:     in.PreferSingleRequest,
			frozen:     in.Refinement.Clone(),
			previous:   in.Refinement.Clone(),
			generation: s.st.generation + 1,
		}
	} else {
		if s.st.prefer && !in.Refinement.SameRefinement(s.st.previous) {
			s.st.interacted = true
		}
		s.st.previous = in.Refinement.Clone()
	}

	d := Decision{
		Mode:       fetchmode.Resolve(s.st.prefer, s.st.interacted),
		Interacted: s.st.interacted,
		Generation: s.st.generation,
		Reset:      reset,
	}
	if d.Mode == fetchmode.Unified {
		frozen := s.st.frozen.Clone()
		d.Frozen = &frozen
	}
	return d
}

// Interacted reports the current interaction flag.
func (s *Selector) Interacted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.interacted
}
