package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceGateAppliesOnlyNewest(t *testing.T) {
	gate := NewSequenceGate(time.Minute)

	require.True(t, gate.Begin("s", 1))
	require.True(t, gate.Begin("s", 2))
	assert.False(t, gate.Complete("s", 1), "superseded by 2")
	assert.True(t, gate.Complete("s", 2))
	assert.False(t, gate.Complete("s", 2), "already applied")

	assert.False(t, gate.Begin("s", 2))
	assert.False(t, gate.Begin("s", 1))
	assert.True(t, gate.Begin("s", 3))
}

func TestSequenceGateSessionsAreIndependent(t *testing.T) {
	gate := NewSequenceGate(time.Minute)

	require.True(t, gate.Begin("a", 10))
	require.True(t, gate.Begin("b", 1))
	assert.True(t, gate.Complete("b", 1))
	assert.True(t, gate.Complete("a", 10))
	assert.False(t, gate.Complete("c", 1))
}

func TestSequenceGatePrunesIdleSessions(t *testing.T) {
	gate := NewSequenceGate(time.Minute)
	now := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return now }

	require.True(t, gate.Begin("s", 5))
	require.True(t, gate.Complete("s", 5))

	now = now.Add(2 * time.Minute)
	require.True(t, gate.Begin("other", 1))
	// The idle session was forgotten, so its counter restarts.
	assert.True(t, gate.Begin("s", 1))
}

func TestSequenceGateAcceptsZeroOnFreshSession(t *testing.T) {
	gate := NewSequenceGate(time.Minute)

	require.True(t, gate.Begin("fresh", 0))
	assert.True(t, gate.Complete("fresh", 0))
	assert.False(t, gate.Begin("fresh", 0), "already applied")
	assert.False(t, gate.Complete("fresh", 0))
	assert.True(t, gate.Begin("fresh", 1))
}
