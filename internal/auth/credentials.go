// ABOUTME: Credential store for user registration and password login
// ABOUTME: Hashes passwords with bcrypt and keeps login failures indistinguishable

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/huddle/internal/chaterr"
	"github.com/2389/huddle/internal/store"
)

// fallbackDummyHash is compared against when the user does not exist so that
// an unknown id costs the same as a wrong password.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Username returns the login name derived from a user id.
func Username(id int64) string {
	return "user_" + strconv.FormatInt(id, 10)
}

// Credentials registers and authenticates users against a UserStore.
type Credentials struct {
	users     store.UserStore
	cost      int
	dummyHash []byte
	logger    *slog.Logger
}

// NewCredentials creates a credential store. A cost of zero uses bcrypt.DefaultCost.
func NewCredentials(users store.UserStore, cost int, logger *slog.Logger) *Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("huddle-timing-equaliser"), cost)
	if err != nil {
		dummy = []byte(fallbackDummyHash)
	}

	return &Credentials{
		users:     users,
		cost:      cost,
		dummyHash: dummy,
		logger:    logger.With("component", "credentials"),
	}
}

// FindByID returns the user, or nil with no error if the id is unknown.
func (c *Credentials) FindByID(ctx context.Context, id int64) (*store.User, error) {
	u, err := c.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user %d: %w", id, err)
	}
	return u, nil
}

// RequireByID returns the user or a chaterr.ErrNotFound.
func (c *Credentials) RequireByID(ctx context.Context, id int64) (*store.User, error) {
	u, err := c.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, chaterr.NotFound("User %d not found", id)
	}
	return u, nil
}

// Register creates a user with a bcrypt hash of rawPassword.
// A blank displayName defaults to "User <id>".
func (c *Credentials) Register(ctx context.Context, id int64, rawPassword, displayName string) (*store.User, error) {
	if id <= 0 || strings.TrimSpace(rawPassword) == "" {
		return nil, chaterr.Invalid("User id and password are required")
	}
	if id > store.MaxUserID {
		return nil, chaterr.Invalid("User id must be at most %d", store.MaxUserID)
	}

	existing, err := c.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, chaterr.Invalid("User %d already exists", id)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), c.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, chaterr.Invalid("Password must be at most 72 bytes")
	}
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "User " + strconv.FormatInt(id, 10)
	}

	u := &store.User{
		ID:           id,
		Username:     Username(id),
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := c.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil, chaterr.Invalid("User %d already exists", id)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	c.logger.Info("user registered", "user_id", id)
	return u, nil
}

// Authenticate checks rawPassword against the stored hash. An unknown user and
// a wrong password both return chaterr.ErrInvalidCredentials.
func (c *Credentials) Authenticate(ctx context.Context, id int64, rawPassword string) (*store.User, error) {
	if id <= 0 || rawPassword == "" {
		return nil, chaterr.Invalid("User id and password are required")
	}

	u, err := c.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(rawPassword))
		c.logger.Debug("login for unknown user", "user_id", id)
		return nil, chaterr.BadCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(rawPassword)); err != nil {
		c.logger.Debug("login with wrong password", "user_id", id)
		return nil, chaterr.BadCredentials()
	}

	return u, nil
}
