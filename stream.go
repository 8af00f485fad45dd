package h2wire

import (
	"sync"

	"github.com/vtesthq/h2wire/hpack"
)

// StreamState is one of the seven states RFC 7540 §5.1 defines. It is
// the full 7-state table spec.md §4.4 requires; the teacher's own
// stream.go models a simpler 5-state machine (it collapses
// ReservedLocal/ReservedRemote and the two HalfClosed variants), so
// this type is grounded primarily on
// original_source/src/http/h2/stream.rs's StreamState enum.
type StreamState int8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved(local)"
	case StreamReservedRemote:
		return "reserved(remote)"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed(local)"
	case StreamHalfClosedRemote:
		return "half-closed(remote)"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s StreamState) IsClosed() bool { return s == StreamClosed }

// Stream is one bidirectional sequence of frames within a connection.
// A connection's StreamManager owns its Streams (the arena-by-id
// pattern from spec.md §9); the drivers also hand them to callers for
// inspection (Request's result, Client.Stream, ServerStream).
type Stream struct {
	mu sync.Mutex

	id    uint32
	state StreamState

	SendWindow *FlowControlWindow
	RecvWindow *FlowControlWindow

	ReqHeaders  []hpack.HeaderField
	RespHeaders []hpack.HeaderField

	Method, Path, Scheme, Authority string
	Status                         string

	headerAccumulator []byte
	Body              []byte

	HeadersComplete bool
	StreamComplete  bool

	// dispatched guards a server handler from being spawned twice for
	// the same stream (once per HEADERS/CONTINUATION frame observed
	// after headers complete).
	dispatched bool

	Priority *Priority

	// RstCode is set when the stream was closed by an RST_STREAM,
	// local or remote, so the test can distinguish a clean close from
	// a cancellation.
	RstCode *ErrorCode

	// done is closed exactly once, when the stream reaches Closed;
	// a driver or test goroutine blocked waiting on this stream wakes
	// up. Mirrors the signal-channel idiom in
	// other_examples/perbu-GTest2's Stream.Signal/Wait.
	done chan struct{}
}

// NewStream creates a stream in the Idle state with both flow-control
// windows set to initialWindow.
func NewStream(id uint32, initialWindow uint32) *Stream {
	return &Stream{
		id:         id,
		state:      StreamIdle,
		SendWindow: NewFlowControlWindow(initialWindow),
		RecvWindow: NewFlowControlWindow(initialWindow),
		done:       make(chan struct{}),
	}
}

func (s *Stream) ID() uint32 { return s.id }

func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done returns a channel closed when the stream transitions to Closed.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) close(code *ErrorCode) {
	if s.state == StreamClosed {
		return
	}
	s.state = StreamClosed
	s.RstCode = code
	close(s.done)
}

// ReserveRemote transitions a freshly created Idle stream to
// reserved(remote), the effect a PUSH_PROMISE has on the promised
// stream id (RFC 7540 §5.1). Called instead of ReceiveHeaders because
// no HEADERS frame is ever seen on this stream until the push itself
// starts responding.
func (s *Stream) ReserveRemote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StreamIdle {
		s.state = StreamReservedRemote
	}
}

// ReceiveHeaders applies a received HEADERS frame's effect on stream
// state, per the transition table in spec.md §4.4. A second HEADERS
// on an already-Open/HalfClosedLocal stream (trailers) changes state
// only when it carries END_STREAM.
func (s *Stream) ReceiveHeaders(endStream bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StreamIdle:
		if endStream {
			s.state = StreamHalfClosedRemote
		} else {
			s.state = StreamOpen
		}
	case StreamReservedRemote:
		if endStream {
			s.close(nil)
		} else {
			s.state = StreamHalfClosedLocal
		}
	case StreamOpen:
		if endStream {
			s.state = StreamHalfClosedRemote
		}
		// trailers: state unchanged otherwise.
	case StreamHalfClosedLocal:
		if endStream {
			s.close(nil)
		}
	case StreamClosed:
		return NewStreamError(s.id, ErrCodeStreamClosed, "HEADERS received on closed stream")
	default:
		return NewError(ErrCodeProtocol, KindNone, "HEADERS received on stream %d in state %s", s.id, s.state)
	}
	return nil
}

// SendHeaders applies the local effect of emitting a HEADERS frame.
func (s *Stream) SendHeaders(endStream bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StreamIdle:
		if endStream {
			s.state = StreamHalfClosedLocal
		} else {
			s.state = StreamOpen
		}
	case StreamReservedLocal:
		if endStream {
			s.close(nil)
		} else {
			s.state = StreamHalfClosedRemote
		}
	case StreamOpen:
		if endStream {
			s.state = StreamHalfClosedLocal
		}
	case StreamHalfClosedRemote:
		if endStream {
			s.close(nil)
		}
	default:
		return NewError(ErrCodeProtocol, KindNone, "HEADERS sent on stream %d in state %s", s.id, s.state)
	}
	return nil
}

// ReceiveData applies the effect of an inbound DATA frame: deduct
// from the recv window, append to the body, and advance state on
// END_STREAM.
func (s *Stream) ReceiveData(body []byte, endStream bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StreamOpen && s.state != StreamHalfClosedLocal {
		return NewStreamError(s.id, ErrCodeStreamClosed, "DATA received on stream %d in state %s", s.id, s.state)
	}

	s.RecvWindow.Decrease(int64(len(body)))
	s.Body = append(s.Body, body...)

	if endStream {
		if s.state == StreamOpen {
			s.state = StreamHalfClosedRemote
		} else {
			s.close(nil)
		}
		s.StreamComplete = true
	}
	return nil
}

// SendData consults the stream's send window and returns the number
// of bytes actually granted (which may be less than len(body), or
// zero). The caller must wait for a WINDOW_UPDATE and retry rather
// than treat a short grant as an error. If endStream is requested and
// the full length was granted, state advances.
func (s *Stream) SendData(n int, endStream bool) (granted int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StreamOpen && s.state != StreamHalfClosedRemote {
		return 0, NewStreamError(s.id, ErrCodeStreamClosed, "DATA sent on stream %d in state %s", s.id, s.state)
	}

	g := s.SendWindow.Consume(int64(n))
	granted = int(g)

	if endStream && granted == n {
		if s.state == StreamOpen {
			s.state = StreamHalfClosedLocal
		} else {
			s.close(nil)
		}
	}
	return granted, nil
}

// Reset transitions the stream to Closed immediately, as the local or
// remote effect of an RST_STREAM frame (spec.md §5's Cancellation).
func (s *Stream) Reset(code ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := code
	s.close(&c)
}

// AppendHeaderFragment accumulates a HEADERS/CONTINUATION header
// block fragment until END_HEADERS.
func (s *Stream) AppendHeaderFragment(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headerAccumulator = append(s.headerAccumulator, b...)
}

// HeaderBlock returns the accumulated, not-yet-decoded header block.
func (s *Stream) HeaderBlock() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headerAccumulator
}

// ResetHeaderBlock clears the accumulator, e.g. after HPACK-decoding
// it, so a subsequent trailers block starts fresh.
func (s *Stream) ResetHeaderBlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headerAccumulator = s.headerAccumulator[:0]
}

// SetRequestHeaders stores the decoded request header list and pulls
// out the pseudo-headers the driver needs directly.
func (s *Stream) SetRequestHeaders(fields []hpack.HeaderField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReqHeaders = fields
	for _, hf := range fields {
		switch hf.Name {
		case ":method":
			s.Method = hf.Value
		case ":path":
			s.Path = hf.Value
		case ":scheme":
			s.Scheme = hf.Value
		case ":authority":
			s.Authority = hf.Value
		}
	}
}

// SetResponseHeaders stores the decoded response header list.
func (s *Stream) SetResponseHeaders(fields []hpack.HeaderField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RespHeaders = fields
	for _, hf := range fields {
		if hf.Name == ":status" {
			s.Status = hf.Value
		}
	}
}

// Header returns the first value for name, matching the first-wins
// resolution of spec.md §9's header-order open question.
func Header(fields []hpack.HeaderField, name string) (string, bool) {
	for _, hf := range fields {
		if hf.Name == name {
			return hf.Value, true
		}
	}
	return "", false
}

// HeaderValues returns every value for name, in receive order, for
// multi-valued headers such as set-cookie.
func HeaderValues(fields []hpack.HeaderField, name string) []string {
	var out []string
	for _, hf := range fields {
		if hf.Name == name {
			out = append(out, hf.Value)
		}
	}
	return out
}
