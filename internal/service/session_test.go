package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sidequest-sync/internal/api"
	"github.com/d60-Lab/sidequest-sync/internal/model"
)

type fakeAuthAPI struct {
	res *api.AuthResult
	err error
}

func (f *fakeAuthAPI) Login(context.Context, string, string) (*api.AuthResult, error) {
	return f.res, f.err
}

func (f *fakeAuthAPI) Signup(context.Context, string, string) (*api.AuthResult, error) {
	return f.res, f.err
}

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestLoginAdoptsTokenClaims(t *testing.T) {
	exp := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
	auth := &fakeAuthAPI{res: &api.AuthResult{
		Token: signToken(t, "u42", exp),
		User:  model.User{Username: "alice"},
	}}
	s := NewSession()

	require.NoError(t, s.Login(context.Background(), auth, "alice", "pw"))

	assert.True(t, s.Valid())
	assert.Equal(t, "u42", s.UserID())
	assert.Equal(t, exp.Unix(), s.ExpiresAt().Unix())
	assert.NotEmpty(t, s.Token())
}

func TestLoginMapsUnauthorized(t *testing.T) {
	auth := &fakeAuthAPI{err: &api.Error{Status: 401, Detail: "Incorrect username or password"}}
	s := NewSession()

	err := s.Login(context.Background(), auth, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, s.Valid())
	assert.Empty(t, s.Token())
}

func TestSignupMapsUsernameTaken(t *testing.T) {
	auth := &fakeAuthAPI{err: &api.Error{Status: 400, Detail: "USERNAME_TAKEN"}}
	s := NewSession()

	err := s.Signup(context.Background(), auth, "alice", "pw")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestAuthErrorPassthrough(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	auth := &fakeAuthAPI{err: boom}
	s := NewSession()

	err := s.Login(context.Background(), auth, "alice", "pw")
	assert.ErrorIs(t, err, boom)
}

func TestExpiredTokenIsInvalid(t *testing.T) {
	auth := &fakeAuthAPI{res: &api.AuthResult{
		Token: signToken(t, "u42", time.Now().Add(-time.Minute)),
	}}
	s := NewSession()

	require.NoError(t, s.Login(context.Background(), auth, "alice", "pw"))
	assert.False(t, s.Valid())
}

func TestOpaqueTokenStillUsable(t *testing.T) {
	// 非 JWT 凭证：claims 解不出来也不报错，exp 视为未知
	s := NewSession()
	require.NoError(t, s.Resume("opaque-token", model.User{ID: "u1", Username: "bob"}))

	assert.True(t, s.Valid())
	assert.Equal(t, "opaque-token", s.Token())
	u, ok := s.User()
	assert.True(t, ok)
	assert.Equal(t, "bob", u.Username)
}

func TestLogoutClearsEverything(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Resume(signToken(t, "u1", time.Now().Add(time.Hour)), model.User{ID: "u1"}))
	require.True(t, s.Valid())

	s.Logout()

	assert.False(t, s.Valid())
	assert.Empty(t, s.Token())
	_, ok := s.User()
	assert.False(t, ok)
}

func TestResumeRejectsEmptyToken(t *testing.T) {
	s := NewSession()
	err := s.Resume("", model.User{ID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
