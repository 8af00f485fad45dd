package h2wire

import (
	"time"

	"github.com/vtesthq/h2wire/hpack"
)

// Server drives one server-side HTTP/2 connection: it validates the
// client preface, performs the SETTINGS handshake, and dispatches
// inbound requests to a Handler. Grounded on the teacher's
// serverConn.go accept/handshake sequence, generalized onto the
// shared *conn base.
type Server struct {
	*conn
}

// Handler processes one complete request stream. The server calls it
// in its own goroutine per stream so a slow handler never blocks the
// connection's single reader.
type Handler func(s *ServerStream)

// ServerStream is the request/response handle a Handler receives: the
// underlying Stream plus a reference back to the Server for emitting
// the response.
type ServerStream struct {
	*Stream
	srv *Server
}

// Accept validates the connection preface, starts the reader/writer
// goroutines, sends local SETTINGS, and waits for the handshake to
// complete. The caller owns accepting the underlying TCP/TLS
// connection.
func Accept(opts ConnOpts, handler Handler) (*Server, error) {
	c, err := newConn(opts, false)
	if err != nil {
		return nil, err
	}
	srv := &Server{conn: c}

	if err := srv.checkPreface(); err != nil {
		c.close()
		return nil, err
	}

	go c.runWriter()
	go srv.runReader(handler)

	settingsFr := AcquireFrameHeader()
	settingsFr.Type = FrameSettings
	(&SettingsFrame{Settings: c.localSettings}).Serialize(settingsFr)
	if err := c.writeFrame(settingsFr); err != nil {
		c.close()
		return nil, err
	}

	if err := srv.awaitHandshake(); err != nil {
		c.close()
		return nil, err
	}

	return srv, nil
}

func (srv *Server) checkPreface() error {
	if err := srv.opts.Transport.Poll(PollRead, srv.opts.HandshakeTimeout); err != nil {
		return NewError(0, KindTimeout, "poll preface: %v", err)
	}
	buf := make([]byte, len(Preface))
	if _, err := readFull(srv.opts.Transport, buf); err != nil {
		return NewError(0, KindMissingPreface, "reading preface: %v", err)
	}
	if string(buf) != Preface {
		return NewError(0, KindMissingPreface, "preface mismatch: got %q", buf)
	}
	return nil
}

func readFull(t Transport, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := t.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (srv *Server) awaitHandshake() error {
	deadline := time.After(srv.opts.HandshakeTimeout)
	remoteDone, ackDone := false, false
	for !remoteDone || !ackDone {
		select {
		case <-srv.handshakeDone:
			remoteDone = true
			if ackDone {
				return nil
			}
		case <-srv.settingsAcked:
			ackDone = true
			if remoteDone {
				return nil
			}
		case <-deadline:
			return ErrTimeout
		case <-srv.closeCh:
			return ErrConnectionClosed
		}
	}
	return nil
}

// runReader is the server's reader goroutine. It dispatches every
// frame like the client does, except a HEADERS frame that completes a
// new request stream's headers spawns handler in its own goroutine.
func (srv *Server) runReader(handler Handler) {
	for {
		if err := srv.opts.Transport.Poll(PollRead, srv.opts.IOTimeout); err != nil {
			srv.recordFatal(NewError(0, KindTimeout, "poll read: %v", err))
			return
		}

		fr := AcquireFrameHeader()
		if err := fr.ReadFrom(readerFunc(srv.opts.Transport.Read), srv.localSettings.MaxFrameSize()); err != nil {
			ReleaseFrameHeader(fr)
			srv.recordFatal(err)
			return
		}

		streamID := fr.StreamID
		wasHeaders := fr.Type == FrameHeaders || fr.Type == FrameContinuation

		if err := srv.dispatchFrame(fr); err != nil {
			ReleaseFrameHeader(fr)
			srv.recordFatal(err)
			return
		}
		ReleaseFrameHeader(fr)

		if wasHeaders && handler != nil {
			if s, ok := srv.streams.Get(streamID); ok && s.HeadersComplete {
				srv.maybeDispatch(s, handler)
			}
		}
	}
}

// maybeDispatch spawns handler exactly once per stream, the instant
// its request headers are fully decoded (it does not wait for the
// body: a streaming handler reads Stream.Body as it arrives via its
// own polling, matching spec.md §4.5's "handler sees headers before
// body" ordering).
func (srv *Server) maybeDispatch(s *Stream, handler Handler) {
	s.mu.Lock()
	already := s.dispatched
	s.dispatched = true
	s.mu.Unlock()
	if already {
		return
	}
	go handler(&ServerStream{Stream: s, srv: srv})
}

// AwaitRequestComplete blocks until the request's body has been fully
// received (END_STREAM on DATA or on HEADERS for a bodyless request),
// or the connection closes. A handler that needs the whole body
// before responding calls this before reading Stream.Body; a
// streaming handler may instead poll Stream.Body directly without
// calling it at all.
func (ss *ServerStream) AwaitRequestComplete() error {
	srv := ss.srv
	s := ss.Stream
	for {
		if s.StreamComplete || s.State() == StreamClosed {
			return rstStreamError(s)
		}
		if err := srv.LastError(); err != nil {
			return err
		}
		wait := srv.subscribe(s.ID())
		if s.StreamComplete || s.State() == StreamClosed {
			return rstStreamError(s)
		}
		select {
		case <-wait:
		case <-srv.closeCh:
			return ErrConnectionClosed
		}
	}
}

// WriteHeaders HPACK-encodes fields and emits HEADERS/CONTINUATION for
// this response, splitting on the peer's MAX_FRAME_SIZE exactly as
// the client's request path does.
func (ss *ServerStream) WriteHeaders(fields []hpack.HeaderField, endStream bool) error {
	srv := ss.srv
	srv.mu.Lock()
	block, err := srv.enc.Encode(fields)
	srv.mu.Unlock()
	if err != nil {
		return err
	}

	if err := ss.Stream.SendHeaders(endStream); err != nil {
		return err
	}

	maxFrame := int(srv.remoteSettings.MaxFrameSize())
	first := block
	rest := []byte(nil)
	if len(block) > maxFrame {
		first = block[:maxFrame]
		rest = block[maxFrame:]
	}

	hf := AcquireFrameHeader()
	hf.StreamID = ss.ID()
	hf.Type = FrameHeaders
	(&HeadersFrame{
		EndStreamFlag:  endStream,
		EndHeadersFlag: len(rest) == 0,
		rawHeaders:     first,
	}).Serialize(hf)
	if err := srv.writeFrame(hf); err != nil {
		return err
	}

	for len(rest) > 0 {
		chunk := rest
		last := true
		if len(chunk) > maxFrame {
			chunk = rest[:maxFrame]
			last = false
		}
		rest = rest[len(chunk):]

		cf := AcquireFrameHeader()
		cf.StreamID = ss.ID()
		cf.Type = FrameContinuation
		(&Continuation{EndHeadersFlag: last, rawHeaders: chunk}).Serialize(cf)
		if err := srv.writeFrame(cf); err != nil {
			return err
		}
	}
	return nil
}

// WriteData emits the body, honoring both flow-control windows the
// same way the client side's sendBody does.
func (ss *ServerStream) WriteData(body []byte, endStream bool) error {
	srv := ss.srv
	s := ss.Stream

	if len(body) == 0 {
		if !endStream {
			return nil
		}
		if _, err := s.SendData(0, true); err != nil {
			return err
		}
		fr := AcquireFrameHeader()
		fr.StreamID = s.ID()
		fr.Type = FrameData
		(&Data{EndStreamFlag: true}).Serialize(fr)
		return srv.writeFrame(fr)
	}

	for len(body) > 0 {
		srv.mu.Lock()
		connGrant := srv.connSendWindow.Consume(int64(len(body)))
		srv.mu.Unlock()
		if connGrant == 0 {
			wait := srv.subscribe(0)
			select {
			case <-wait:
			case <-srv.closeCh:
				return ErrConnectionClosed
			}
			continue
		}

		n := int(connGrant)
		if n > len(body) {
			n = len(body)
		}
		if maxFrame := int(srv.remoteSettings.MaxFrameSize()); n > maxFrame {
			n = maxFrame
		}

		granted, err := s.SendData(n, endStream && n == len(body))
		if err != nil {
			return err
		}
		if granted == 0 {
			srv.mu.Lock()
			srv.connSendWindow.Increase(uint32(connGrant))
			srv.mu.Unlock()
			wait := srv.subscribe(s.ID())
			select {
			case <-wait:
			case <-srv.closeCh:
				return ErrConnectionClosed
			}
			continue
		}

		if int64(granted) < connGrant {
			srv.mu.Lock()
			srv.connSendWindow.Increase(uint32(connGrant - int64(granted)))
			srv.mu.Unlock()
		}

		fr := AcquireFrameHeader()
		fr.StreamID = s.ID()
		fr.Type = FrameData
		chunk := body[:granted]
		body = body[granted:]
		(&Data{EndStreamFlag: endStream && len(body) == 0, b: chunk}).Serialize(fr)
		if err := srv.writeFrame(fr); err != nil {
			return err
		}
	}
	return nil
}

// RstStream aborts the stream locally with code.
func (ss *ServerStream) RstStream(code ErrorCode) error {
	return ss.srv.resetStream(ss.ID(), code)
}

// Close sends GOAWAY(NO_ERROR) with the highest stream id this server
// has observed, and tears down the connection.
func (srv *Server) Close() error {
	err := srv.sendGoAway(ErrCodeNone, srv.streams.highestPeerID)
	srv.close()
	return err
}
