package h2wire

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtesthq/h2wire/hpack"
)

// dialAccept wires a Client and Server together over net.Pipe, the
// same in-memory net.Conn pairing other_examples/perbu-GTest2 uses for
// its own loopback tests, avoiding a real TCP listener for unit tests.
func dialAccept(t *testing.T, handler Handler) (*Client, *Server) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	srvCh := make(chan *Server, 1)
	errCh := make(chan error, 1)
	go func() {
		srv, err := Accept(ConnOpts{Transport: NewTCPTransport(serverConn), IOTimeout: 5 * time.Second, HandshakeTimeout: 5 * time.Second}, handler)
		if err != nil {
			errCh <- err
			return
		}
		srvCh <- srv
	}()

	cl, err := Dial(ConnOpts{Transport: NewTCPTransport(clientConn), IOTimeout: 5 * time.Second, HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)

	var srv *Server
	select {
	case srv = <-srvCh:
		t.Cleanup(func() { srv.Close() })
	case err := <-errCh:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Accept")
	}

	t.Cleanup(func() { cl.Close() })
	return cl, srv
}

func TestClientServer_HandshakeCompletes(t *testing.T) {
	dialAccept(t, func(s *ServerStream) {})
}

func TestClientServer_RequestResponseRoundTrip(t *testing.T) {
	cl, _ := dialAccept(t, func(s *ServerStream) {
		require.NoError(t, s.AwaitRequestComplete())
		assert.Equal(t, "GET", s.Method)
		assert.Equal(t, "/ping", s.Path)

		status := []hpack.HeaderField{{Name: ":status", Value: "200"}}
		require.NoError(t, s.WriteHeaders(status, false))
		require.NoError(t, s.WriteData([]byte("pong"), true))
	})

	stream, err := cl.Request("GET", "/ping", "example.com", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "200", stream.Status)
	assert.Equal(t, []byte("pong"), stream.Body)
}

func TestClientServer_RequestWithBody(t *testing.T) {
	cl, _ := dialAccept(t, func(s *ServerStream) {
		require.NoError(t, s.AwaitRequestComplete())
		status := []hpack.HeaderField{{Name: ":status", Value: "201"}}
		require.NoError(t, s.WriteHeaders(status, true))
	})

	body := make([]byte, 200000) // exceeds the default initial window, forcing a WINDOW_UPDATE wait
	for i := range body {
		body[i] = byte(i)
	}

	stream, err := cl.Request("POST", "/upload", "example.com", nil, body)
	require.NoError(t, err)
	assert.Equal(t, "201", stream.Status)
}

func TestClientServer_RstStreamAbortsCleanly(t *testing.T) {
	cl, _ := dialAccept(t, func(s *ServerStream) {
		require.NoError(t, s.RstStream(ErrCodeCancel))
	})

	stream, err := cl.Request("GET", "/cancel-me", "example.com", nil, nil)
	require.Error(t, err, "a received RST_STREAM resolves Request to the peer's error code")
	assert.True(t, errors.Is(err, &Error{Code: ErrCodeCancel}))
	require.NotNil(t, stream.RstCode)
	assert.Equal(t, ErrCodeCancel, *stream.RstCode)
}

func TestClientServer_PingIsAcked(t *testing.T) {
	cl, _ := dialAccept(t, func(s *ServerStream) {})

	// A PING ACK wakes the connection-level (stream 0) waiters.
	acked := cl.subscribe(0)
	var payload [8]byte
	copy(payload[:], "PINGDATA")
	require.NoError(t, cl.SendPing(payload))

	select {
	case <-acked:
		require.NoError(t, cl.LastError(), "the wake-up came from the PING ACK, not from a fatal error")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the PING ACK")
	}
}
