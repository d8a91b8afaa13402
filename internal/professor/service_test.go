package professor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evaldash/internal/state"
)

// fakeStore keeps professors in memory, keyed by id.
type fakeStore struct {
	mu        sync.Mutex
	byID      map[string]Professor
	updateErr error
}

func newFakeStore(profs ...Professor) *fakeStore {
	f := &fakeStore{byID: make(map[string]Professor)}
	for _, p := range profs {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*Professor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (*Professor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		// Exact match, case-sensitive, like the backing store.
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) Update(ctx context.Context, p Professor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[p.ID]; !ok {
		return ErrNotFound
	}
	f.byID[p.ID] = p
	return nil
}

func complete(t *testing.T, password string) Professor {
	t.Helper()
	p := Professor{
		ID:             "prof-1",
		Name:           "Ada",
		Email:          "ada@u.edu",
		DepartmentID:   "dep-1",
		DepartmentName: "Computer Science",
	}
	require.NoError(t, p.SetPassword(password))
	return p
}

func tempState(t *testing.T) *state.File {
	t.Helper()
	f, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return f
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	svc := NewService(store, tempState(t))

	p, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	require.NotNil(t, svc.Current())
	assert.Equal(t, "prof-1", svc.Current().ID)
}

func TestSignInFailures(t *testing.T) {
	ctx := context.Background()

	retired := complete(t, "secret")
	retired.ID = "prof-2"
	retired.Email = "ret@u.edu"
	retired.Status = StatusRetired

	partial := complete(t, "secret")
	partial.ID = "prof-3"
	partial.Email = "new@u.edu"
	partial.DepartmentName = ""

	store := newFakeStore(complete(t, "secret"), retired, partial)
	svc := NewService(store, tempState(t))

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "unknown email", email: "nobody@u.edu", password: "secret", wantErr: ErrNotFound},
		{name: "email case mismatch", email: "Ada@u.edu", password: "secret", wantErr: ErrNotFound},
		{name: "wrong password", email: "ada@u.edu", password: "nope", wantErr: ErrInvalidCredential},
		{name: "retired account", email: "ret@u.edu", password: "secret", wantErr: ErrAccountInactive},
		{name: "incomplete profile", email: "new@u.edu", password: "secret", wantErr: ErrIncompleteProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.SignIn(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, p)
			// A failed attempt never leaves a partial session behind.
			assert.Nil(t, svc.Current())
		})
	}
}

func TestSignInFailureClearsPriorSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	svc := NewService(store, tempState(t))

	_, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "ada@u.edu", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredential)
	assert.Nil(t, svc.Current())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	local := tempState(t)

	svc := NewService(store, local)
	_, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)
	assert.Equal(t, "prof-1", local.Get(state.KeyProfessorID))

	// A fresh service over the same state file picks the session back up.
	svc2 := NewService(store, local)
	assert.True(t, svc2.Initializing())
	svc2.Restore(ctx)
	assert.False(t, svc2.Initializing())
	require.NotNil(t, svc2.Current())
	assert.Equal(t, "Ada", svc2.Current().Name)
}

func TestRestoreRejectsStaleIdentity(t *testing.T) {
	ctx := context.Background()
	p := complete(t, "secret")
	store := newFakeStore(p)
	local := tempState(t)
	require.NoError(t, local.Set(state.KeyProfessorID, p.ID))

	// The account was deactivated while the client was away.
	store.mu.Lock()
	p.Status = StatusInactive
	store.byID[p.ID] = p
	store.mu.Unlock()

	svc := NewService(store, local)
	svc.Restore(ctx)
	assert.Nil(t, svc.Current())
	// The dangling identifier is cleaned up.
	assert.Equal(t, "", local.Get(state.KeyProfessorID))
}

func TestLogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	local := tempState(t)
	svc := NewService(store, local)

	_, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)

	svc.Logout()
	assert.Nil(t, svc.Current())
	assert.Equal(t, "", local.Get(state.KeyProfessorID))

	svc.Logout()
	assert.Nil(t, svc.Current())
}

func TestMutationsRequireSession(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), tempState(t))

	assert.ErrorIs(t, svc.UpdateProfile(ctx, "X", "x@u.edu"), ErrNotAuthenticated)
	assert.ErrorIs(t, svc.UpdatePassword(ctx, "a", "b"), ErrNotAuthenticated)
	assert.ErrorIs(t, svc.SetAvatar(ctx, "data:image/png;base64,AA=="), ErrNotAuthenticated)
	assert.ErrorIs(t, svc.DeleteAvatar(ctx), ErrNotAuthenticated)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	svc := NewService(store, tempState(t))
	_, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateProfile(ctx, "Ada L", "ada.l@u.edu"))
	assert.Equal(t, "Ada L", svc.Current().Name)
	assert.Equal(t, "ada.l@u.edu", svc.Current().Email)

	// The write reached the backing store, not just the session mirror.
	stored, err := store.GetByID(ctx, "prof-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L", stored.Name)
}

func TestUpdateProfileKeepsSessionOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	svc := NewService(store, tempState(t))
	_, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)

	store.mu.Lock()
	store.updateErr = assert.AnError
	store.mu.Unlock()

	err = svc.UpdateProfile(ctx, "Ada L", "ada.l@u.edu")
	require.ErrorIs(t, err, assert.AnError)
	// Session keeps its prior state.
	assert.Equal(t, "Ada", svc.Current().Name)
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	svc := NewService(store, tempState(t))
	_, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)

	require.ErrorIs(t, svc.UpdatePassword(ctx, "wrong", "next"), ErrInvalidCredential)

	require.NoError(t, svc.UpdatePassword(ctx, "secret", "next"))
	stored, err := store.GetByID(ctx, "prof-1")
	require.NoError(t, err)
	assert.NoError(t, stored.CheckPassword("next"))
	assert.Error(t, stored.CheckPassword("secret"))
}

func TestAvatarLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(complete(t, "secret"))
	svc := NewService(store, tempState(t))
	_, err := svc.SignIn(ctx, "ada@u.edu", "secret")
	require.NoError(t, err)

	// Nothing to delete yet.
	require.Error(t, svc.DeleteAvatar(ctx))

	require.NoError(t, svc.SetAvatar(ctx, "data:image/png;base64,AA=="))
	assert.Equal(t, "data:image/png;base64,AA==", svc.Current().ImageURL)

	require.NoError(t, svc.DeleteAvatar(ctx))
	assert.Equal(t, "", svc.Current().ImageURL)
}

func TestProfessorStatus(t *testing.T) {
	tests := []struct {
		status string
		active bool
	}{
		{"", true},
		{"Active", true},
		{"Inactive", false},
		{"INACTIVE", false},
		{"resigned", false},
		{"Retired", false},
		{"On Leave", true},
	}
	for _, tt := range tests {
		p := Professor{Status: tt.status}
		assert.Equal(t, tt.active, p.IsActive(), "status %q", tt.status)
	}

	assert.Equal(t, StatusActive, (&Professor{}).EffectiveStatus())
}

func TestHandledSectionsAndSubjects(t *testing.T) {
	p := Professor{
		SubjectSections: []SubjectSection{
			{Subject: "Algorithms", Sections: []string{"CS-3A", "CS-3B"}},
			{Subject: "Databases", Sections: []string{"CS-3A"}},
		},
	}
	assert.Equal(t, []string{"CS-3A", "CS-3B"}, p.HandledSections())
	assert.Equal(t, []string{"Algorithms", "Databases"}, p.HandledSubjects())

	// Legacy single-section fallback.
	legacy := Professor{HandledSection: "CS-1A"}
	assert.Equal(t, []string{"CS-1A"}, legacy.HandledSections())
	assert.Empty(t, legacy.HandledSubjects())
}
