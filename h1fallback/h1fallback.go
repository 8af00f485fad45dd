// Package h1fallback serves plain HTTP/1.1 over a connection whose
// TLS ALPN negotiation did not select "h2" — the same sibling role
// the teacher's fasthttp.go/server_fasthttp.go/adaptor.go play:
// HTTP/2 is the thing under test, HTTP/1.1 is the fallback a real
// deployment still has to answer on.
package h1fallback

import (
	"crypto/tls"
	"net"

	"github.com/valyala/fasthttp"
)

// Handler answers plain HTTP/1.1 requests. It is a thin rename of
// fasthttp.RequestHandler so callers don't need to import fasthttp
// just to write one.
type Handler = fasthttp.RequestHandler

// Serve runs a fasthttp server over a single already-accepted
// connection, matching server_fasthttp.go's one-conn-at-a-time
// adaptor rather than fasthttp's usual listener-owning Server.
// Intended for a connection whose NegotiatedProtocol() came back
// "http/1.1" (or "") after the ALPN handshake.
func Serve(conn net.Conn, handler Handler) error {
	srv := &fasthttp.Server{
		Handler:     handler,
		ReadTimeout: 0,
	}
	return srv.ServeConn(conn)
}

// ServeTLS completes the TLS handshake on conn and then serves
// HTTP/1.1 on it exactly like Serve. It does not inspect the ALPN
// result: it serves HTTP/1.1 even when "h2" was negotiated.
// NegotiatedH2 is the check that tells the two cases apart.
func ServeTLS(conn *tls.Conn, handler Handler) error {
	if err := conn.Handshake(); err != nil {
		return err
	}
	return Serve(conn, handler)
}

// NegotiatedH2 reports whether a TLS connection's ALPN handshake
// selected "h2" — the decision point a listener's accept loop uses to
// choose between the h2wire driver and this package.
func NegotiatedH2(conn *tls.Conn) bool {
	return conn.ConnectionState().NegotiatedProtocol == "h2"
}
