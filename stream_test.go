package h2wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtesthq/h2wire/hpack"
)

func TestStream_ReceiveHeaders_IdleToOpen(t *testing.T) {
	s := NewStream(1, 65535)
	require.NoError(t, s.ReceiveHeaders(false))
	assert.Equal(t, StreamOpen, s.State())
}

func TestStream_ReceiveHeaders_IdleWithEndStreamGoesHalfClosedRemote(t *testing.T) {
	s := NewStream(1, 65535)
	require.NoError(t, s.ReceiveHeaders(true))
	assert.Equal(t, StreamHalfClosedRemote, s.State())
}

func TestStream_ReceiveHeaders_OnClosedIsStreamClosedError(t *testing.T) {
	s := NewStream(1, 65535)
	s.Reset(ErrCodeCancel)

	err := s.ReceiveHeaders(false)
	require.Error(t, err)
	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrCodeStreamClosed, herr.Code)
}

func TestStream_SendHeaders_IdleToHalfClosedLocal(t *testing.T) {
	s := NewStream(3, 65535)
	require.NoError(t, s.SendHeaders(true))
	assert.Equal(t, StreamHalfClosedLocal, s.State())
}

func TestStream_ReserveRemote_OnlyAppliesFromIdle(t *testing.T) {
	s := NewStream(2, 65535)
	s.ReserveRemote()
	assert.Equal(t, StreamReservedRemote, s.State())

	require.NoError(t, s.ReceiveHeaders(false))
	assert.Equal(t, StreamHalfClosedLocal, s.State(), "reserved(remote) + non-end-stream HEADERS goes half-closed(local)")

	s.ReserveRemote()
	assert.Equal(t, StreamHalfClosedLocal, s.State(), "ReserveRemote is a no-op outside Idle")
}

func TestStream_ReceiveData_DeductsWindowAndAppendsBody(t *testing.T) {
	s := NewStream(1, 65535)
	require.NoError(t, s.ReceiveHeaders(false))

	require.NoError(t, s.ReceiveData([]byte("hello"), false))
	assert.Equal(t, []byte("hello"), s.Body)
	assert.Equal(t, int64(65535-5), s.RecvWindow.Size())

	require.NoError(t, s.ReceiveData([]byte(" world"), true))
	assert.Equal(t, []byte("hello world"), s.Body)
	assert.True(t, s.StreamComplete)
	assert.Equal(t, StreamHalfClosedRemote, s.State())
}

func TestStream_ReceiveData_RejectedWhenNotOpen(t *testing.T) {
	s := NewStream(1, 65535)
	err := s.ReceiveData([]byte("x"), false)
	require.Error(t, err)
}

func TestStream_SendData_ShortGrantDoesNotAdvanceState(t *testing.T) {
	s := NewStream(1, 10)
	require.NoError(t, s.ReceiveHeaders(false)) // -> open, for this test's purposes reused as local-open too

	granted, err := s.SendData(20, true)
	require.NoError(t, err)
	assert.Equal(t, 10, granted, "a short grant never exceeds the available send window")
	assert.Equal(t, StreamOpen, s.State(), "state does not advance on a partial (short) grant")
}

func TestStream_SendData_FullGrantWithEndStreamAdvancesState(t *testing.T) {
	s := NewStream(1, 100)
	require.NoError(t, s.ReceiveHeaders(false))

	granted, err := s.SendData(10, true)
	require.NoError(t, err)
	assert.Equal(t, 10, granted)
	assert.Equal(t, StreamHalfClosedLocal, s.State())
}

func TestStream_Reset_ClosesAndRecordsCode(t *testing.T) {
	s := NewStream(1, 65535)
	s.Reset(ErrCodeCancel)

	assert.Equal(t, StreamClosed, s.State())
	require.NotNil(t, s.RstCode)
	assert.Equal(t, ErrCodeCancel, *s.RstCode)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done() must be closed after Reset")
	}
}

func TestStream_HeaderFragmentAccumulation(t *testing.T) {
	s := NewStream(1, 65535)
	s.AppendHeaderFragment([]byte("abc"))
	s.AppendHeaderFragment([]byte("def"))
	assert.Equal(t, []byte("abcdef"), s.HeaderBlock())

	s.ResetHeaderBlock()
	assert.Empty(t, s.HeaderBlock())
}

func TestStream_SetRequestHeaders_ExtractsPseudoHeaders(t *testing.T) {
	s := NewStream(1, 65535)
	s.SetRequestHeaders([]hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/hello"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: "user-agent", Value: "test"},
	})

	assert.Equal(t, "GET", s.Method)
	assert.Equal(t, "/hello", s.Path)
	assert.Equal(t, "https", s.Scheme)
	assert.Equal(t, "example.com", s.Authority)
}

func TestStream_SetResponseHeaders_ExtractsStatus(t *testing.T) {
	s := NewStream(1, 65535)
	s.SetResponseHeaders([]hpack.HeaderField{{Name: ":status", Value: "204"}})
	assert.Equal(t, "204", s.Status)
}

func TestHeader_FirstWins(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: "x-trace", Value: "first"},
		{Name: "x-trace", Value: "second"},
	}
	v, ok := Header(fields, "x-trace")
	require.True(t, ok)
	assert.Equal(t, "first", v)

	_, ok = Header(fields, "missing")
	assert.False(t, ok)
}

func TestHeaderValues_ReturnsAllInOrder(t *testing.T) {
	fields := []hpack.HeaderField{
		{Name: "set-cookie", Value: "a=1"},
		{Name: "set-cookie", Value: "b=2"},
		{Name: "content-type", Value: "text/plain"},
	}
	assert.Equal(t, []string{"a=1", "b=2"}, HeaderValues(fields, "set-cookie"))
	assert.Nil(t, HeaderValues(fields, "missing"))
}
