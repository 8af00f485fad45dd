package h2wire

import (
	"sync"
	"time"

	"github.com/vtesthq/h2wire/h2log"
	"github.com/vtesthq/h2wire/hpack"
)

// Preface is the 24-byte literal every HTTP/2 connection opens with,
// client to server, before any frame.
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// ConnOpts configures a connection. It is a plain options struct, not
// functional options, matching the teacher's ConnOpts/ClientOpts/
// ServerConfig shape.
type ConnOpts struct {
	Transport        Transport
	LocalSettings    *Settings
	Logger           h2log.Logger
	Debug            bool
	HandshakeTimeout time.Duration
	IOTimeout        time.Duration
}

func (o *ConnOpts) setDefaults() {
	if o.LocalSettings == nil {
		o.LocalSettings = NewSettings().
			SetEnablePush(false).
			SetMaxConcurrentStreams(1024).
			SetInitialWindowSize(DefaultInitialWindowSize).
			SetMaxFrameSize(DefaultMaxFrameSize).
			SetHeaderTableSize(DefaultHeaderTableSize)
	}
	if o.Logger == nil {
		o.Logger = h2log.Nop{}
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.IOTimeout == 0 {
		o.IOTimeout = 30 * time.Second
	}
}

func (o *ConnOpts) logf(format string, args ...interface{}) {
	if o.Debug {
		o.Logger.Printf(format, args...)
	}
}

// conn holds everything a Client and a Server connection share: the
// frame codec's runtime state, settings, flow control, the stream
// table, and the reader/writer goroutine pair implementing spec.md
// §5's "single-owner-per-connection" model over the teacher's
// channel-driven concurrency structure (SPEC_FULL.md §5).
type conn struct {
	opts ConnOpts

	isClient bool

	mu             sync.Mutex
	localSettings  *Settings
	remoteSettings *Settings

	connSendWindow *FlowControlWindow
	connRecvWindow *FlowControlWindow

	streams *StreamManager

	enc *hpack.Encoder
	dec *hpack.Decoder

	writeCh chan writeReq
	closeCh chan struct{}
	closeOnce sync.Once

	handshakeDone   chan struct{}
	handshakeOnce   sync.Once
	settingsAcked   chan struct{}
	settingsAckOnce sync.Once

	goAwaySent     bool
	goAwayReceived bool
	lastErr        error

	// waiters is signalled whenever any stream's Done() channel might
	// have just closed or new data has arrived for it, so Request/
	// low-level callers can re-check their stream without a busy loop.
	waiters   map[uint32][]chan struct{}
	waitersMu sync.Mutex
}

type writeReq struct {
	fr   *FrameHeader
	done chan error
}

func newConn(opts ConnOpts, isClient bool) (*conn, error) {
	opts.setDefaults()
	if opts.Transport == nil {
		return nil, ErrNilTransport
	}

	c := &conn{
		opts:           opts,
		isClient:       isClient,
		localSettings:  opts.LocalSettings.Clone(),
		remoteSettings: NewSettings(),
		connSendWindow: NewFlowControlWindow(DefaultInitialWindowSize),
		connRecvWindow: NewFlowControlWindow(DefaultInitialWindowSize),
		streams:        NewStreamManager(isClient),
		enc:            hpack.NewEncoder(DefaultHeaderTableSize),
		dec:            hpack.NewDecoder(DefaultHeaderTableSize, 0),
		writeCh:        make(chan writeReq, 64),
		closeCh:        make(chan struct{}),
		handshakeDone:  make(chan struct{}),
		settingsAcked:  make(chan struct{}),
		waiters:        make(map[uint32][]chan struct{}),
	}

	if max, ok := c.localSettings.MaxConcurrentStreams(); ok {
		c.streams.SetMaxConcurrentStreams(max)
	}

	return c, nil
}

// notify wakes any goroutine waiting on streamID via subscribe/wait.
func (c *conn) notify(streamID uint32) {
	c.waitersMu.Lock()
	chans := c.waiters[streamID]
	delete(c.waiters, streamID)
	c.waitersMu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

func (c *conn) subscribe(streamID uint32) chan struct{} {
	ch := make(chan struct{})
	c.waitersMu.Lock()
	c.waiters[streamID] = append(c.waiters[streamID], ch)
	c.waitersMu.Unlock()
	return ch
}

// writeFrame hands a frame to the writer goroutine and waits for it
// to actually be written (or for the connection to close). Frames are
// written in the exact order writeFrame is called, satisfying
// spec.md §5's per-connection ordering guarantee.
func (c *conn) writeFrame(fr *FrameHeader) error {
	done := make(chan error, 1)
	select {
	case c.writeCh <- writeReq{fr: fr, done: done}:
	case <-c.closeCh:
		return ErrConnectionClosed
	}
	select {
	case err := <-done:
		return err
	case <-c.closeCh:
		return ErrConnectionClosed
	}
}

// runWriter is the writer goroutine: it serializes outbound frames to
// the transport strictly in submission order. Grounded on conn.go's
// writeLoop / serverConn.go's writer channel.
func (c *conn) runWriter() {
	for {
		select {
		case req := <-c.writeCh:
			if err := c.opts.Transport.Poll(PollWrite, c.opts.IOTimeout); err != nil {
				req.done <- NewError(0, KindTimeout, "poll write: %v", err)
				continue
			}
			c.opts.logf("send %s stream=%d flags=0x%x len=%d", req.fr.Type, req.fr.StreamID, uint8(req.fr.Flags), len(req.fr.payload))
			_, err := req.fr.WriteTo(writerFunc(c.opts.Transport.Write))
			req.done <- err
			ReleaseFrameHeader(req.fr)
		case <-c.closeCh:
			return
		}
	}
}

type writerFunc func([]byte) (int, error)

func (w writerFunc) Write(p []byte) (int, error) { return w(p) }

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.opts.Transport.Close()
	})
}

// setGoAwayReceived marks the connection unusable for new streams,
// per spec.md §4.6/§7: already-outstanding streams below
// last_stream_id may still complete.
func (c *conn) setGoAwayReceived(lastStreamID uint32, code ErrorCode) {
	c.mu.Lock()
	c.goAwayReceived = true
	c.mu.Unlock()
}

// Done returns a channel closed when the connection has shut down,
// for a caller that just wants to block until the peer or an I/O
// error ends the connection.
func (c *conn) Done() <-chan struct{} { return c.closeCh }

func (c *conn) isGoneAway() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goAwayReceived || c.goAwaySent
}
