package professor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"evaldash/internal/state"
)

// Session failure taxonomy. Sign-in failures never leave a partial
// session behind.
var (
	ErrNotFound          = errors.New("no professor found with this email")
	ErrInvalidCredential = errors.New("invalid password")
	ErrAccountInactive   = errors.New("account is inactive, please contact the administrator")
	ErrIncompleteProfile = errors.New("professor data is incomplete")
	ErrNotAuthenticated  = errors.New("no professor logged in")
)

// Service is the session store: it owns the current professor, restores
// identity from the locally persisted id on startup, and applies profile
// mutations (remote write first, then local mirror).
type Service struct {
	store Store
	local *state.File

	mu           sync.RWMutex
	current      *Professor
	initializing bool
	loading      bool
}

// NewService creates the session store. Initializing stays true until
// Restore resolves, so callers can distinguish "still checking" from
// "checked, not logged in".
func NewService(store Store, local *state.File) *Service {
	return &Service{store: store, local: local, initializing: true, loading: true}
}

// Restore repopulates the session from the locally persisted professor
// id. All failure paths are silent: the identifier is cleared and the
// session stays empty.
func (s *Service) Restore(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.initializing = false
		s.loading = false
		s.mu.Unlock()
	}()

	id := s.local.Get(state.KeyProfessorID)
	if id == "" {
		return
	}

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		log.Printf("session restore failed: %v", err)
		_ = s.local.Delete(state.KeyProfessorID)
		return
	}
	if !p.IsComplete() || !p.IsActive() {
		log.Printf("session restore rejected for %s: status %q", id, p.EffectiveStatus())
		_ = s.local.Delete(state.KeyProfessorID)
		return
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	log.Printf("session restored for %s", p.Name)
}

// SignIn authenticates by exact email match and password hash
// comparison, then persists the professor id locally.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Professor, error) {
	// Never leave a stale professor visible while authenticating.
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	p, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		metricSignIns.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if err := p.CheckPassword(password); err != nil {
		metricSignIns.WithLabelValues("bad_credential").Inc()
		return nil, ErrInvalidCredential
	}
	if !p.IsActive() {
		metricSignIns.WithLabelValues("inactive").Inc()
		return nil, fmt.Errorf("%w (status %s)", ErrAccountInactive, strings.ToLower(p.EffectiveStatus()))
	}
	if !p.IsComplete() {
		metricSignIns.WithLabelValues("incomplete").Inc()
		return nil, ErrIncompleteProfile
	}
	metricSignIns.WithLabelValues("ok").Inc()

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	if err := s.local.Set(state.KeyProfessorID, p.ID); err != nil {
		log.Printf("persist professor id failed: %v", err)
	}
	return s.Current(), nil
}

// Logout clears the session and the persisted identifier. Idempotent.
func (s *Service) Logout() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	_ = s.local.Delete(state.KeyProfessorID)
}

// Current returns a copy of the signed-in professor, or nil.
func (s *Service) Current() *Professor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Initializing reports whether the startup restore is still in flight.
func (s *Service) Initializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initializing
}

// Loading reports whether any session operation is in flight.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading || s.initializing
}

// mutate runs a remote-write-then-mirror update against the current
// professor. The remote failure, if any, is surfaced unmodified and the
// local session keeps its prior state.
func (s *Service) mutate(ctx context.Context, apply func(p *Professor) error) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	updated := *s.current
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	if err := apply(&updated); err != nil {
		return err
	}
	if err := s.store.Update(ctx, updated); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &updated
	s.mu.Unlock()
	return nil
}

// UpdateProfile changes the display name and email.
func (s *Service) UpdateProfile(ctx context.Context, name, email string) error {
	return s.mutate(ctx, func(p *Professor) error {
		p.Name = name
		p.Email = email
		return nil
	})
}

// UpdatePassword verifies the current password before storing a new
// hash.
func (s *Service) UpdatePassword(ctx context.Context, current, next string) error {
	return s.mutate(ctx, func(p *Professor) error {
		if err := p.CheckPassword(current); err != nil {
			return ErrInvalidCredential
		}
		return p.SetPassword(next)
	})
}

// SetAvatar stores a base64 data URL as the profile picture.
func (s *Service) SetAvatar(ctx context.Context, dataURL string) error {
	return s.mutate(ctx, func(p *Professor) error {
		p.ImageURL = dataURL
		return nil
	})
}

// DeleteAvatar clears the profile picture.
func (s *Service) DeleteAvatar(ctx context.Context) error {
	return s.mutate(ctx, func(p *Professor) error {
		if p.ImageURL == "" {
			return errors.New("no profile picture to delete")
		}
		p.ImageURL = ""
		return nil
	})
}
