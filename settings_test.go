package h2wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_Defaults(t *testing.T) {
	s := NewSettings()
	assert.Equal(t, uint32(DefaultHeaderTableSize), s.HeaderTableSize())
	assert.True(t, s.EnablePush())
	assert.Equal(t, uint32(DefaultInitialWindowSize), s.InitialWindowSize())
	assert.Equal(t, uint32(DefaultMaxFrameSize), s.MaxFrameSize())

	_, ok := s.MaxConcurrentStreams()
	assert.False(t, ok, "unset MAX_CONCURRENT_STREAMS means unbounded")

	_, ok = s.MaxHeaderListSize()
	assert.False(t, ok)
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, NewSettings().Validate())

	require.Error(t, NewSettings().SetInitialWindowSize(1<<31).Validate())
	require.Error(t, NewSettings().SetMaxFrameSize(1).Validate())
	require.Error(t, NewSettings().SetMaxFrameSize(1<<25).Validate())
	require.NoError(t, NewSettings().SetMaxFrameSize(MinMaxFrameSize).Validate())
}

func TestSettings_Merge(t *testing.T) {
	base := NewSettings().SetHeaderTableSize(100).SetEnablePush(true)
	update := NewSettings().SetEnablePush(false).SetInitialWindowSize(5000)

	base.Merge(update)

	assert.Equal(t, uint32(100), base.HeaderTableSize(), "absent params in update leave base untouched")
	assert.False(t, base.EnablePush())
	assert.Equal(t, uint32(5000), base.InitialWindowSize())
}

func TestSettingsFrame_RoundTrip(t *testing.T) {
	s := NewSettings().
		SetHeaderTableSize(8192).
		SetEnablePush(false).
		SetMaxConcurrentStreams(128).
		SetInitialWindowSize(131072).
		SetMaxFrameSize(32768).
		SetEnableConnectProtocol(true)

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	(&SettingsFrame{Settings: s}).Serialize(fr)

	decoded := &SettingsFrame{}
	require.NoError(t, decoded.Deserialize(fr))

	assert.False(t, decoded.Ack)
	assert.Equal(t, uint32(8192), decoded.Settings.HeaderTableSize())
	assert.False(t, decoded.Settings.EnablePush())
	max, ok := decoded.Settings.MaxConcurrentStreams()
	require.True(t, ok)
	assert.Equal(t, uint32(128), max)
	assert.Equal(t, uint32(131072), decoded.Settings.InitialWindowSize())
	assert.Equal(t, uint32(32768), decoded.Settings.MaxFrameSize())
	assert.True(t, decoded.Settings.EnableConnectProtocol())
}

func TestSettingsFrame_Ack(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	(&SettingsFrame{Ack: true}).Serialize(fr)
	assert.True(t, fr.Flags.Has(FlagAck))
	assert.Equal(t, uint32(0), fr.Length)

	decoded := &SettingsFrame{}
	require.NoError(t, decoded.Deserialize(fr))
	assert.True(t, decoded.Ack)
}

func TestSettingsFrame_RejectsNonMultipleOfSixLength(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.SetPayload([]byte{1, 2, 3})

	decoded := &SettingsFrame{}
	require.Error(t, decoded.Deserialize(fr))
}

func TestSettingsFrame_RejectsNonEmptyAck(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.Flags = fr.Flags.Add(FlagAck)
	fr.SetPayload([]byte{0, 1, 0, 0, 0, 1})

	decoded := &SettingsFrame{}
	require.Error(t, decoded.Deserialize(fr))
}
