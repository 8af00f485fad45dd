package h2wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamManager_CreateStream_ClientUsesOddIds(t *testing.T) {
	sm := NewStreamManager(true)

	s1, err := sm.CreateStream(65535)
	require.NoError(t, err)
	s2, err := sm.CreateStream(65535)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), s1.ID())
	assert.Equal(t, uint32(3), s2.ID())
}

func TestStreamManager_CreateStream_ServerUsesEvenIds(t *testing.T) {
	sm := NewStreamManager(false)

	s1, err := sm.CreateStream(65535)
	require.NoError(t, err)
	s2, err := sm.CreateStream(65535)
	require.NoError(t, err)

	assert.Equal(t, uint32(2), s1.ID())
	assert.Equal(t, uint32(4), s2.ID())
}

func TestStreamManager_CreateStream_EnforcesMaxConcurrentStreams(t *testing.T) {
	sm := NewStreamManager(true)
	sm.SetMaxConcurrentStreams(1)

	_, err := sm.CreateStream(65535)
	require.NoError(t, err)

	_, err = sm.CreateStream(65535)
	require.Error(t, err)
	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindTooManyStreams, herr.Kind)
}

func TestStreamManager_GetOrCreate_ReturnsExisting(t *testing.T) {
	sm := NewStreamManager(false)

	created, err := sm.GetOrCreate(1, 65535)
	require.NoError(t, err)

	fetched, err := sm.GetOrCreate(1, 65535)
	require.NoError(t, err)
	assert.Same(t, created, fetched)
}

func TestStreamManager_GetOrCreate_RejectsLowerUnknownId(t *testing.T) {
	sm := NewStreamManager(false)

	_, err := sm.GetOrCreate(5, 65535)
	require.NoError(t, err)

	_, err = sm.GetOrCreate(3, 65535)
	require.Error(t, err)
	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindInvalidStreamId, herr.Kind)
}

func TestStreamManager_GetOrCreate_EnforcesMaxConcurrentStreams(t *testing.T) {
	sm := NewStreamManager(false)
	sm.SetMaxConcurrentStreams(1)

	_, err := sm.GetOrCreate(1, 65535)
	require.NoError(t, err)

	_, err = sm.GetOrCreate(3, 65535)
	require.Error(t, err)
}

func TestStreamManager_GetDeleteCleanup(t *testing.T) {
	sm := NewStreamManager(true)
	s, err := sm.CreateStream(65535)
	require.NoError(t, err)

	got, ok := sm.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.Equal(t, 1, sm.ActiveCount())
	s.Reset(ErrCodeCancel)
	sm.Cleanup()

	_, ok = sm.Get(s.ID())
	assert.False(t, ok, "Cleanup removes Closed streams")
	assert.Equal(t, 0, sm.ActiveCount())
}

func TestStreamManager_RescaleAll(t *testing.T) {
	sm := NewStreamManager(true)
	s1, err := sm.CreateStream(100)
	require.NoError(t, err)
	s2, err := sm.CreateStream(100)
	require.NoError(t, err)

	s1.SendWindow.Consume(40)

	require.NoError(t, sm.RescaleAll(200))

	assert.Equal(t, int64(160), s1.SendWindow.Size())
	assert.Equal(t, int64(200), s2.SendWindow.Size())
}
