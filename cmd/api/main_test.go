package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evaldash/internal/auth"
	"evaldash/internal/professor"
	"evaldash/internal/state"
)

type memStore struct {
	byID map[string]professor.Professor
}

func (m *memStore) GetByID(ctx context.Context, id string) (*professor.Professor, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, professor.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*professor.Professor, error) {
	for _, p := range m.byID {
		if p.Email == email {
			cp := p
			return &cp, nil
		}
	}
	return nil, professor.ErrNotFound
}

func (m *memStore) Update(ctx context.Context, p professor.Professor) error {
	if _, ok := m.byID[p.ID]; !ok {
		return professor.ErrNotFound
	}
	m.byID[p.ID] = p
	return nil
}

func signedInService(t *testing.T) *professor.Service {
	t.Helper()
	p := professor.Professor{
		ID:             "prof-a",
		Name:           "Ada",
		Email:          "ada@u.edu",
		DepartmentID:   "dep-1",
		DepartmentName: "Computer Science",
	}
	require.NoError(t, p.SetPassword("secret"))

	local, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	svc := professor.NewService(&memStore{byID: map[string]professor.Professor{p.ID: p}}, local)
	_, err = svc.SignIn(context.Background(), "ada@u.edu", "secret")
	require.NoError(t, err)
	return svc
}

func contextWithClaims(subject, email string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/v1/profile", nil)
	if subject != "" {
		c.Set(auth.ContextClaims, auth.Claims{
			Email: email,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: subject,
			},
		})
	}
	return c, rec
}

func TestActingProfessorMatchingToken(t *testing.T) {
	svc := signedInService(t)

	c, _ := contextWithClaims("prof-a", "ada@u.edu")
	p, ok := actingProfessor(c, svc)
	require.True(t, ok)
	assert.Equal(t, "prof-a", p.ID)
}

func TestActingProfessorRejectsForeignToken(t *testing.T) {
	svc := signedInService(t)

	// A still-valid token for a different professor must not act on the
	// signed-in one's document.
	c, rec := contextWithClaims("prof-b", "bert@u.edu")
	_, ok := actingProfessor(c, svc)
	require.False(t, ok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, c.IsAborted())

	// The signed-in session is untouched.
	require.NotNil(t, svc.Current())
	assert.Equal(t, "prof-a", svc.Current().ID)
}

func TestActingProfessorWithoutSession(t *testing.T) {
	local, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	svc := professor.NewService(&memStore{byID: map[string]professor.Professor{}}, local)

	c, rec := contextWithClaims("prof-a", "ada@u.edu")
	_, ok := actingProfessor(c, svc)
	require.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActingProfessorWithoutClaims(t *testing.T) {
	svc := signedInService(t)

	c, rec := contextWithClaims("", "")
	_, ok := actingProfessor(c, svc)
	require.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
