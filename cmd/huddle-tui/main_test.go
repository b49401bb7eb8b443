// ABOUTME: Tests for huddle-tui helpers
// ABOUTME: Covers target parsing and conversation id resolution

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tgt, err := parseTarget("/peer 5")
	require.NoError(t, err)
	assert.Equal(t, target{peer: 5}, tgt)
	assert.Equal(t, int64(41), tgt.conversationID(3))
	assert.Equal(t, "user 5", tgt.String())

	tgt, err = parseTarget("/room 100")
	require.NoError(t, err)
	assert.Equal(t, int64(100), tgt.conversationID(3))
	assert.Equal(t, "room 100", tgt.String())

	for _, bad := range []string{"/peer abc", "/peer 0", "/peer 1 2"} {
		_, err = parseTarget(bad)
		assert.Error(t, err, bad)
	}
}
