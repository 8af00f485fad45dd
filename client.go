package h2wire

import (
	"time"

	"github.com/vtesthq/h2wire/hpack"
)

// Client drives one client-side HTTP/2 connection: it performs the
// preface/SETTINGS handshake, exposes a high-level Request call, and
// a low-level Send* API for tests that need to emit frames a
// well-behaved client never would.
//
// Grounded on the teacher's client.go connection-setup sequence,
// generalized onto the shared *conn base (conn.go) per SPEC_FULL.md
// §5's concurrency decision.
type Client struct {
	*conn
}

// Dial performs the preface + SETTINGS handshake over an
// already-established Transport and starts the reader/writer
// goroutines. The caller owns establishing the TCP/TLS connection
// (see DialTLS); Dial only speaks HTTP/2 once bytes can flow.
func Dial(opts ConnOpts) (*Client, error) {
	c, err := newConn(opts, true)
	if err != nil {
		return nil, err
	}

	cl := &Client{conn: c}

	if _, err := c.opts.Transport.Write([]byte(Preface)); err != nil {
		c.close()
		return nil, err
	}

	go c.runWriter()
	go cl.runReader()

	settingsFr := AcquireFrameHeader()
	settingsFr.Type = FrameSettings
	(&SettingsFrame{Settings: c.localSettings}).Serialize(settingsFr)
	if err := c.writeFrame(settingsFr); err != nil {
		c.close()
		return nil, err
	}

	if err := cl.awaitHandshake(); err != nil {
		c.close()
		return nil, err
	}

	return cl, nil
}

func (cl *Client) awaitHandshake() error {
	deadline := time.After(cl.opts.HandshakeTimeout)
	remoteDone, ackDone := false, false
	for !remoteDone || !ackDone {
		select {
		case <-cl.handshakeDone:
			remoteDone = true
			if ackDone {
				return nil
			}
		case <-cl.settingsAcked:
			ackDone = true
			if remoteDone {
				return nil
			}
		case <-deadline:
			return ErrTimeout
		case <-cl.closeCh:
			return ErrConnectionClosed
		}
	}
	return nil
}

// runReader is the client's reader goroutine: it pulls frames off the
// transport one at a time and dispatches them, per spec.md §5's
// single-reader-per-connection rule.
func (cl *Client) runReader() {
	for {
		if err := cl.opts.Transport.Poll(PollRead, cl.opts.IOTimeout); err != nil {
			cl.recordFatal(NewError(0, KindTimeout, "poll read: %v", err))
			return
		}

		fr := AcquireFrameHeader()
		if err := fr.ReadFrom(readerFunc(cl.opts.Transport.Read), cl.localSettings.MaxFrameSize()); err != nil {
			ReleaseFrameHeader(fr)
			cl.recordFatal(err)
			return
		}

		if err := cl.dispatchFrame(fr); err != nil {
			ReleaseFrameHeader(fr)
			cl.recordFatal(err)
			return
		}
		ReleaseFrameHeader(fr)
	}
}

type readerFunc func([]byte) (int, error)

func (r readerFunc) Read(p []byte) (int, error) { return r(p) }

func (c *conn) recordFatal(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.close()
	c.notify(0)
}

// LastError returns the error that ended the reader goroutine, if any.
func (c *conn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Request is the high-level call: open a new stream, send headers
// (and body, if non-empty) with END_STREAM, then block until a
// complete response (headers + body) arrives, the stream is reset, or
// the connection fails or closes. There is no per-request timeout.
func (cl *Client) Request(method, path, authority string, headers []hpack.HeaderField, body []byte) (*Stream, error) {
	if cl.isGoneAway() {
		return nil, ErrConnectionClosed
	}

	s, err := cl.streams.CreateStream(cl.remoteSettings.InitialWindowSize())
	if err != nil {
		return nil, err
	}

	fields := append([]hpack.HeaderField{
		{Name: ":method", Value: method},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: authority},
		{Name: ":path", Value: path},
	}, headers...)

	endStream := len(body) == 0
	if err := cl.sendHeaders(s, fields, endStream); err != nil {
		return nil, err
	}

	if len(body) > 0 {
		if err := cl.sendBody(s, body, true); err != nil {
			return nil, err
		}
	}

	// s is returned alongside a non-nil error too: a peer RST_STREAM
	// resolves the request to the Cancel (or other) error code while
	// still leaving the stream's RstCode/partial Body inspectable.
	err = cl.awaitStreamComplete(s)
	return s, err
}

func (cl *Client) awaitStreamComplete(s *Stream) error {
	for {
		if s.StreamComplete || s.State() == StreamClosed {
			return rstStreamError(s)
		}
		if err := cl.LastError(); err != nil {
			return err
		}
		wait := cl.subscribe(s.ID())
		if s.StreamComplete || s.State() == StreamClosed {
			return rstStreamError(s)
		}
		select {
		case <-wait:
		case <-cl.closeCh:
			return ErrConnectionClosed
		}
	}
}

// rstStreamError reports the peer's RST_STREAM code as the request's
// error, so errors.Is(err, &Error{Code: ErrCodeCancel}) works the way
// spec.md §8's Cancel(1) resolution implies; a clean completion (no
// RstCode) returns nil.
func rstStreamError(s *Stream) error {
	if s.RstCode == nil {
		return nil
	}
	return NewStreamError(s.ID(), *s.RstCode, "stream reset by peer")
}

// sendHeaders HPACK-encodes fields and emits one HEADERS frame plus
// as many CONTINUATION frames as needed to stay within the peer's
// MAX_FRAME_SIZE, resolving SPEC_FULL.md §9's Open Question 2.
func (cl *Client) sendHeaders(s *Stream, fields []hpack.HeaderField, endStream bool) error {
	cl.mu.Lock()
	block, err := cl.enc.Encode(fields)
	cl.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.SendHeaders(endStream); err != nil {
		return err
	}

	maxFrame := int(cl.remoteSettings.MaxFrameSize())
	first := block
	rest := []byte(nil)
	if len(block) > maxFrame {
		first = block[:maxFrame]
		rest = block[maxFrame:]
	}

	hf := AcquireFrameHeader()
	hf.StreamID = s.ID()
	hf.Type = FrameHeaders
	(&HeadersFrame{
		EndStreamFlag:  endStream,
		EndHeadersFlag: len(rest) == 0,
		rawHeaders:     first,
	}).Serialize(hf)
	if err := cl.writeFrame(hf); err != nil {
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
		cf.StreamID = s.ID()
		cf.Type = FrameContinuation
		(&Continuation{EndHeadersFlag: last, rawHeaders: chunk}).Serialize(cf)
		if err := cl.writeFrame(cf); err != nil {
			return err
		}
	}
	return nil
}

// sendBody emits DATA frames, honoring both the stream and connection
// send windows; a short grant blocks on a WINDOW_UPDATE wake-up and
// retries rather than erroring, per spec.md §4.3.
func (cl *Client) sendBody(s *Stream, body []byte, endStream bool) error {
	for len(body) > 0 {
		cl.mu.Lock()
		connGrant := cl.connSendWindow.Consume(int64(len(body)))
		cl.mu.Unlock()
		if connGrant == 0 {
			wait := cl.subscribe(0)
			select {
			case <-wait:
			case <-cl.closeCh:
				return ErrConnectionClosed
			}
			continue
		}

		n := int(connGrant)
		if n > len(body) {
			n = len(body)
		}
		if maxFrame := int(cl.remoteSettings.MaxFrameSize()); n > maxFrame {
			n = maxFrame
		}

		granted, err := s.SendData(n, endStream && n == len(body))
		if err != nil {
			return err
		}
		if granted == 0 {
			cl.mu.Lock()
			cl.connSendWindow.Increase(uint32(connGrant))
			cl.mu.Unlock()
			wait := cl.subscribe(s.ID())
			select {
			case <-wait:
			case <-cl.closeCh:
				return ErrConnectionClosed
			}
			continue
		}

		if int64(granted) < connGrant {
			cl.mu.Lock()
			cl.connSendWindow.Increase(uint32(connGrant - int64(granted)))
			cl.mu.Unlock()
		}

		fr := AcquireFrameHeader()
		fr.StreamID = s.ID()
		fr.Type = FrameData
		chunk := body[:granted]
		body = body[granted:]
		(&Data{EndStreamFlag: endStream && len(body) == 0, b: chunk}).Serialize(fr)
		if err := cl.writeFrame(fr); err != nil {
			return err
		}
	}
	return nil
}

// --- low-level Send* API: builds and emits one frame each, bypassing
// every stream-state check the high-level Request path applies. This
// is deliberate: it is the surface a conformance test uses to send
// frames a real client would refuse to construct.

func (cl *Client) SendHeadersRaw(streamID uint32, fields []hpack.HeaderField, endStream, endHeaders bool) error {
	cl.mu.Lock()
	block, err := cl.enc.Encode(fields)
	cl.mu.Unlock()
	if err != nil {
		return err
	}
	fr := AcquireFrameHeader()
	fr.StreamID = streamID
	fr.Type = FrameHeaders
	(&HeadersFrame{EndStreamFlag: endStream, EndHeadersFlag: endHeaders, rawHeaders: block}).Serialize(fr)
	return cl.writeFrame(fr)
}

func (cl *Client) SendDataRaw(streamID uint32, body []byte, endStream bool) error {
	fr := AcquireFrameHeader()
	fr.StreamID = streamID
	fr.Type = FrameData
	(&Data{EndStreamFlag: endStream, b: body}).Serialize(fr)
	return cl.writeFrame(fr)
}

func (cl *Client) SendRstStream(streamID uint32, code ErrorCode) error {
	fr := AcquireFrameHeader()
	fr.StreamID = streamID
	fr.Type = FrameRstStream
	(&RstStream{Code: code}).Serialize(fr)
	return cl.writeFrame(fr)
}

func (cl *Client) SendWindowUpdate(streamID, increment uint32) error {
	fr := AcquireFrameHeader()
	fr.StreamID = streamID
	fr.Type = FrameWindowUpdate
	(&WindowUpdate{Increment: increment}).Serialize(fr)
	return cl.writeFrame(fr)
}

func (cl *Client) SendPing(data [8]byte) error {
	fr := AcquireFrameHeader()
	fr.Type = FramePing
	(&Ping{Data: data}).Serialize(fr)
	return cl.writeFrame(fr)
}

func (cl *Client) SendGoAway(code ErrorCode, lastStreamID uint32) error {
	return cl.sendGoAway(code, lastStreamID)
}

func (cl *Client) SendPriority(streamID uint32, p Priority) error {
	fr := AcquireFrameHeader()
	fr.StreamID = streamID
	fr.Type = FramePriority
	p.Serialize(fr)
	return cl.writeFrame(fr)
}

// SendRawFrame writes length/type/flags/streamID/payload exactly as
// given — length need not match len(payload), the malformed-frame
// escape hatch a conformance test uses to send a lying-length frame.
// It goes through writeFrame like every other Send*, so ordering with
// the client's other writes is preserved; SetRawLength is what makes
// WriteTo honor the declared length instead of deriving it from the
// payload.
func (cl *Client) SendRawFrame(length uint32, typ FrameType, flags Flags, streamID uint32, payload []byte) error {
	fr := AcquireFrameHeader()
	fr.Type = typ
	fr.Flags = flags
	fr.StreamID = streamID
	fr.SetPayload(payload)
	fr.SetRawLength(length)
	return cl.writeFrame(fr)
}

// Stream exposes a stream by id, for a test that sent a low-level
// frame and now wants to inspect the resulting state.
func (cl *Client) Stream(id uint32) (*Stream, bool) {
	return cl.streams.Get(id)
}

// Close sends GOAWAY(NO_ERROR) and tears down the connection.
func (cl *Client) Close() error {
	err := cl.sendGoAway(ErrCodeNone, 0)
	cl.close()
	return err
}
