// ABOUTME: Tests for user registration and password authentication
// ABOUTME: Uses the in-memory MockStore and the minimum bcrypt cost for speed

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/huddle/internal/chaterr"
	"github.com/2389/huddle/internal/store"
)

func newTestCredentials(t *testing.T) (*Credentials, *store.MockStore) {
	t.Helper()
	s := store.NewMockStore()
	return NewCredentials(s, bcrypt.MinCost, nil), s
}

func TestRegisterThenAuthenticate(t *testing.T) {
	creds, s := newTestCredentials(t)
	ctx := t.Context()

	u, err := creds.Register(ctx, 7, "p", "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "user_7", u.Username)
	assert.Equal(t, "Alice", u.DisplayName)

	stored, err := s.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.NotEqual(t, "p", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))

	got, err := creds.Authenticate(ctx, 7, "p")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = creds.Authenticate(ctx, 7, "wrong")
	assert.ErrorIs(t, err, chaterr.ErrInvalidCredentials)
}

func TestAuthenticate_UnknownUserLooksLikeWrongPassword(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := t.Context()
	_, err := creds.Register(ctx, 1, "secret", "")
	require.NoError(t, err)

	_, unknownErr := creds.Authenticate(ctx, 99, "secret")
	_, wrongErr := creds.Authenticate(ctx, 1, "nope")

	require.ErrorIs(t, unknownErr, chaterr.ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, chaterr.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestRegister_Duplicate(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := t.Context()

	_, err := creds.Register(ctx, 7, "p", "Alice")
	require.NoError(t, err)

	_, err = creds.Register(ctx, 7, "q", "Other")
	require.ErrorIs(t, err, chaterr.ErrInvalidArgument)
	assert.Equal(t, "User 7 already exists", chaterr.Message(err))
}

func TestRegister_Validation(t *testing.T) {
	creds, _ := newTestCredentials(t)

	tests := []struct {
		name     string
		id       int64
		password string
	}{
		{name: "missing id", id: 0, password: "p"},
		{name: "negative id", id: -4, password: "p"},
		{name: "empty password", id: 1, password: ""},
		{name: "blank password", id: 1, password: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := creds.Register(t.Context(), tt.id, tt.password, "x")
			assert.ErrorIs(t, err, chaterr.ErrInvalidArgument)
		})
	}
}

func TestRegister_IDAboveMaximum(t *testing.T) {
	creds, _ := newTestCredentials(t)

	_, err := creds.Register(t.Context(), store.MaxUserID+1, "p", "Too Big")
	require.ErrorIs(t, err, chaterr.ErrInvalidArgument)
	assert.Equal(t, "User id must be at most 2147483647", chaterr.Message(err))

	u, err := creds.Register(t.Context(), store.MaxUserID, "p", "Largest")
	require.NoError(t, err)
	assert.Equal(t, store.MaxUserID, u.ID)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	creds, _ := newTestCredentials(t)
	_, err := creds.Register(t.Context(), 1, strings.Repeat("a", 73), "")
	assert.ErrorIs(t, err, chaterr.ErrInvalidArgument)
}

func TestRegister_DefaultDisplayName(t *testing.T) {
	creds, _ := newTestCredentials(t)
	u, err := creds.Register(t.Context(), 12, "p", "  ")
	require.NoError(t, err)
	assert.Equal(t, "User 12", u.DisplayName)
}

func TestAuthenticate_MissingFields(t *testing.T) {
	creds, _ := newTestCredentials(t)
	_, err := creds.Authenticate(t.Context(), 0, "p")
	assert.ErrorIs(t, err, chaterr.ErrInvalidArgument)
	_, err = creds.Authenticate(t.Context(), 3, "")
	assert.ErrorIs(t, err, chaterr.ErrInvalidArgument)
}

func TestFindAndRequire(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := t.Context()

	u, err := creds.FindByID(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = creds.RequireByID(ctx, 5)
	require.ErrorIs(t, err, chaterr.ErrNotFound)
	assert.Equal(t, "User 5 not found", chaterr.Message(err))

	_, err = creds.Register(ctx, 5, "p", "")
	require.NoError(t, err)

	u, err = creds.RequireByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), u.ID)
}
