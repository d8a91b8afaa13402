package theme

import (
	"fmt"
	"sync"

	"evaldash/internal/state"
)

// Store holds the process-wide active palette: persisted locally,
// restored on start, broadcast to listeners on change.
type Store struct {
	local *state.File

	mu        sync.RWMutex
	current   Palette
	listeners []chan string
}

// NewStore restores the saved theme, defaulting to the built-in palette
// when none was saved or the saved name no longer resolves.
func NewStore(local *state.File) *Store {
	saved := local.Get(state.KeyTheme)
	if saved == "" {
		saved = DefaultPalette
	}
	p, ok := Find(saved)
	if !ok {
		p = Catalog[0]
	}
	return &Store{local: local, current: p}
}

// Current returns the active palette.
func (s *Store) Current() Palette {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Colors returns the active palette's token set.
func (s *Store) Colors() Colors {
	return s.Current().Colors
}

// Apply activates a catalog palette by name, persists the choice and
// notifies listeners. Fire and forget: a slow listener misses the event
// rather than blocking the change.
func (s *Store) Apply(value string) (Palette, error) {
	p, ok := Find(value)
	if !ok {
		return Palette{}, fmt.Errorf("unknown theme %q", value)
	}

	// Persist first: on failure the active palette must not have moved.
	if err := s.local.Set(state.KeyTheme, value); err != nil {
		return Palette{}, err
	}

	s.mu.Lock()
	s.current = p
	listeners := append([]chan string(nil), s.listeners...)
	s.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- value:
		default:
		}
	}
	return p, nil
}

// Listen registers a change listener. The returned cancel removes it.
func (s *Store) Listen() (<-chan string, func()) {
	ch := make(chan string, 4)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		for i, c := range s.listeners {
			if c == ch {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
