package main

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistry(t *testing.T) {
	registry := newSessionRegistry(testConfig(), testBank(3))

	assert.Equal(t, 0, registry.Count())

	_, exists := registry.Get("ZZZZZ")
	assert.False(t, exists)

	room := registry.Create("host-token")
	require.NotNil(t, room)
	assert.Equal(t, "host-token", room.hostToken)
	assert.Equal(t, phaseLobby, room.phase)
	assert.Equal(t, -1, room.questionIndex)

	got, exists := registry.Get(room.code)
	require.True(t, exists)
	assert.Same(t, room, got)

	assert.Equal(t, 1, registry.Count())
}

func TestRoomCodes(t *testing.T) {
	registry := newSessionRegistry(testConfig(), testBank(3))

	codeFormat := regexp.MustCompile(`^[A-Z0-9]{5}$`)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		room := registry.Create("host-token")

		assert.Regexp(t, codeFormat, room.code)
		assert.NotEqual(t, reservedRoomCode, room.code)
		assert.False(t, seen[room.code], "duplicate room code %s", room.code)
		seen[room.code] = true
	}
}
