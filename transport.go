package h2wire

import (
	"crypto/tls"
	"net"
	"time"
)

// PollMode selects which direction Transport.Poll waits for.
type PollMode int

const (
	PollRead PollMode = iota
	PollWrite
)

// Transport is the byte-stream abstraction the connection drivers
// read and write through. Concrete instances are plain TCP and TLS
// (with ALPN); the core never looks past Read/Write/Poll/Close.
//
// Grounded on conn.go's direct net.Conn usage for the plain-TCP case
// and configure.go's configureDialer/ConfigureClient for the TLS+ALPN
// case.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	// Poll arms the read or write deadline for mode, timeout from now,
	// and returns at once; it does not wait for readiness. A Read or
	// Write still pending when the deadline passes fails with the
	// connection's own deadline error, which is not mapped to
	// ErrTimeout. The drivers call Poll before each frame they read or
	// write.
	Poll(mode PollMode, timeout time.Duration) error

	Close() error

	// NegotiatedProtocol returns the ALPN-negotiated protocol string
	// ("h2", "http/1.1") or "" for a non-TLS transport.
	NegotiatedProtocol() string
}

// TCPTransport wraps a plain net.Conn.
type TCPTransport struct {
	conn net.Conn
}

// NewTCPTransport wraps an already-established connection.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

func (t *TCPTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *TCPTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *TCPTransport) Close() error                { return t.conn.Close() }
func (t *TCPTransport) NegotiatedProtocol() string  { return "" }

func (t *TCPTransport) Poll(mode PollMode, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	switch mode {
	case PollRead:
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
	case PollWrite:
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return nil
}

// TLSTransport wraps a *tls.Conn and exposes the ALPN result.
type TLSTransport struct {
	conn *tls.Conn
}

// NewTLSTransport wraps an already-handshaken TLS connection.
func NewTLSTransport(conn *tls.Conn) *TLSTransport {
	return &TLSTransport{conn: conn}
}

func (t *TLSTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *TLSTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *TLSTransport) Close() error                { return t.conn.Close() }

func (t *TLSTransport) NegotiatedProtocol() string {
	return t.conn.ConnectionState().NegotiatedProtocol
}

func (t *TLSTransport) Poll(mode PollMode, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	switch mode {
	case PollRead:
		return t.conn.SetReadDeadline(deadline)
	case PollWrite:
		return t.conn.SetWriteDeadline(deadline)
	}
	return nil
}

// ALPNProtocols is the NextProtos list a client transport should
// advertise and a server transport should select from, per spec.md
// §6's ALPN requirement: h2 is offered, http/1.1 as a fallback for
// the h1fallback sibling.
var ALPNProtocols = []string{"h2", "http/1.1"}

// DialTLS connects to addr and performs a TLS handshake advertising
// ALPNProtocols. It fails with ErrAlpnFailed if the peer did not
// select "h2".
func DialTLS(network, addr string, tlsConfig *tls.Config) (*TLSTransport, error) {
	cfg := tlsConfig.Clone()
	cfg.NextProtos = ALPNProtocols

	conn, err := tls.Dial(network, addr, cfg)
	if err != nil {
		return nil, err
	}
	if conn.ConnectionState().NegotiatedProtocol != "h2" {
		conn.Close()
		return nil, ErrAlpnFailed
	}
	return NewTLSTransport(conn), nil
}
