// Command h2harness runs h2wire as a standalone server, for manual
// probing with curl/nghttp or as the target of the h2spec CLI.
// Grounded on the teacher's demo/main.go + examples/ layout: a small
// main wiring the library together, not a feature of the library
// itself.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/valyala/fasthttp"

	"github.com/vtesthq/h2wire"
	"github.com/vtesthq/h2wire/h1fallback"
	"github.com/vtesthq/h2wire/h2log"
	"github.com/vtesthq/h2wire/hpack"
	"github.com/vtesthq/h2wire/testcert"
)

func main() {
	addr := flag.String("addr", ":8443", "listen address")
	selfSigned := flag.Bool("self-signed", true, "serve TLS with a generated self-signed certificate")
	debug := flag.Bool("debug", false, "log every frame sent and received")
	flag.Parse()

	if !*selfSigned {
		log.Fatal("h2harness: only -self-signed=true is supported; bring your own listener to use a real certificate")
	}

	kp, err := testcert.Generate("localhost", "127.0.0.1")
	if err != nil {
		log.Fatalf("h2harness: generating certificate: %v", err)
	}

	ln, err := tls.Listen("tcp", *addr, kp.ServerTLSConfig())
	if err != nil {
		log.Fatalf("h2harness: listen: %v", err)
	}
	log.Printf("h2harness: listening on %s (self-signed, ALPN h2/http1.1)", *addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("h2harness: accept: %v", err)
			continue
		}
		go serveConn(conn, *debug)
	}
}

func serveConn(conn net.Conn, debug bool) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		conn.Close()
		return
	}
	if err := tlsConn.Handshake(); err != nil {
		log.Printf("h2harness: TLS handshake: %v", err)
		conn.Close()
		return
	}

	if !h1fallback.NegotiatedH2(tlsConn) {
		if err := h1fallback.Serve(tlsConn, fallbackHandler); err != nil {
			log.Printf("h2harness: http/1.1 fallback: %v", err)
		}
		return
	}

	opts := h2wire.ConnOpts{
		Transport: h2wire.NewTLSTransport(tlsConn),
		Logger:    h2log.NewStd(),
		Debug:     debug,
	}

	srv, err := h2wire.Accept(opts, echoHandler)
	if err != nil {
		log.Printf("h2harness: accept handshake: %v", err)
		return
	}
	<-srv.Done()
}

// echoHandler answers every request with a 200 and its own request
// body mirrored back, enough to probe framing/flow-control behavior
// with a real HTTP/2 client without needing a router.
func echoHandler(s *h2wire.ServerStream) {
	if err := s.AwaitRequestComplete(); err != nil {
		log.Printf("h2harness: await request: %v", err)
		return
	}

	status := []hpack.HeaderField{{Name: ":status", Value: "200"}}
	if err := s.WriteHeaders(status, false); err != nil {
		log.Printf("h2harness: write headers: %v", err)
		return
	}
	if err := s.WriteData(s.Body, true); err != nil {
		log.Printf("h2harness: write data: %v", err)
	}
}

func fallbackHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(200)
	ctx.SetBodyString(fmt.Sprintf("h2harness: http/1.1 fallback, path=%s", ctx.Path()))
}
