package chaterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("registering: %w", Invalid("User %d already exists", 7))

	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "User 7 already exists", Message(err))
}

func TestBadCredentials(t *testing.T) {
	err := BadCredentials()
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestMessage_Unclassified(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("disk on fire")))
}
