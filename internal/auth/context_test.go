package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	ctx := WithAuth(context.Background(), &AuthContext{UserID: 3, Username: "user_3"})
	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, "user_3", got.Username)
}
