// Package h2wire implements an RFC 7540 wire-level HTTP/2 test
// harness: a frame codec, settings negotiator, stream-state machine,
// flow controller, and the client/server connection drivers that tie
// them together. It is built to let a test construct frames that
// violate the specification and observe how a peer reacts, not to
// hide framing behind a request/response API.
package h2wire

import (
	"fmt"
	"io"
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/vtesthq/h2wire/internal/wire"
)

// FrameType identifies the ten frame types RFC 7540 §6 defines.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRstStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRstStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint8(t))
	}
}

// Flags is the 8-bit flags field of a frame header. Its meaning is
// per-type; the codec never interprets it beyond exposing Has/Add.
type Flags uint8

const (
	FlagNone      Flags = 0x0
	FlagEndStream Flags = 0x01 // DATA, HEADERS
	FlagAck       Flags = 0x01 // SETTINGS, PING
	FlagEndHeaders Flags = 0x04 // HEADERS, PUSH_PROMISE, CONTINUATION
	FlagPadded    Flags = 0x08 // DATA, HEADERS, PUSH_PROMISE
	FlagPriority  Flags = 0x20 // HEADERS
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }
func (f Flags) Add(flag Flags) Flags { return f | flag }
func (f Flags) Del(flag Flags) Flags { return f &^ flag }

// MaxPayloadLen is the largest length the 24-bit length field can
// express (2^24 - 1), per RFC 7540 §4.1.
const MaxPayloadLen = 1<<24 - 1

// FrameHeaderLen is the fixed 9-byte size of a frame header.
const FrameHeaderLen = 9

// streamIDMask clears the single reserved bit of the 32-bit stream id
// field, leaving a 31-bit id.
const streamIDMask = 1<<31 - 1

// FrameHeader is the decoded 9-byte frame header plus its raw
// payload. It is pooled: callers that read many frames should
// Acquire/Release to avoid per-frame allocation, matching the pooling
// idiom used throughout this codec.
type FrameHeader struct {
	Length   uint32
	Type     FrameType
	Flags    Flags
	StreamID uint32

	// rawLength forces WriteTo to declare Length on the wire as-is
	// instead of deriving it from len(payload), letting SendRawFrame
	// construct a frame whose declared length lies about its payload.
	rawLength bool

	payload []byte
}

var frameHeaderPool = sync.Pool{
	New: func() interface{} { return &FrameHeader{} },
}

// AcquireFrameHeader gets a FrameHeader from the pool.
func AcquireFrameHeader() *FrameHeader {
	return frameHeaderPool.Get().(*FrameHeader)
}

// ReleaseFrameHeader returns fr to the pool after resetting it.
func ReleaseFrameHeader(fr *FrameHeader) {
	fr.Reset()
	frameHeaderPool.Put(fr)
}

// Reset clears fr for reuse.
func (fr *FrameHeader) Reset() {
	fr.Length = 0
	fr.Type = 0
	fr.Flags = 0
	fr.StreamID = 0
	fr.rawLength = false
	fr.payload = fr.payload[:0]
}

// SetRawLength marks fr so WriteTo declares length on the wire exactly
// as given, independent of the payload's actual size. This is the hook
// SendRawFrame uses to emit a frame whose declared length disagrees
// with its payload — the lying-length case a conformance test needs to
// construct.
func (fr *FrameHeader) SetRawLength(length uint32) {
	fr.Length = length
	fr.rawLength = true
}

// Payload returns the frame's raw payload bytes.
func (fr *FrameHeader) Payload() []byte { return fr.payload }

// SetPayload replaces fr's payload and updates Length to match.
func (fr *FrameHeader) SetPayload(b []byte) {
	fr.payload = append(fr.payload[:0], b...)
	fr.Length = uint32(len(fr.payload))
}

// EncodeHeader appends the 9-byte header for (typ, flags, streamID,
// length) to dst and returns the extended slice. It performs no
// validation: a test may encode a header
// describing a SETTINGS frame on stream 7, or a length that does not
// match the payload actually written — validation is the receiving
// driver's job, never the encoder's, per the harness's design stance.
func EncodeHeader(dst []byte, typ FrameType, flags Flags, streamID uint32, length uint32) []byte {
	dst = wire.AppendUint24Bytes(dst, length)
	dst = append(dst, byte(typ), byte(flags))
	dst = wire.AppendUint32Bytes(dst, streamID&streamIDMask)
	return dst
}

// DecodeHeader is EncodeHeader's exact inverse. It never fails: an
// unrecognized type byte is returned as-is for the driver to reject.
func DecodeHeader(b []byte) (typ FrameType, flags Flags, streamID uint32, length uint32) {
	_ = b[8]
	length = wire.BytesToUint24(b[0:3])
	typ = FrameType(b[3])
	flags = Flags(b[4])
	streamID = wire.BytesToUint32(b[5:9]) & streamIDMask
	return
}

// ReadFrom reads one frame header and exactly Length payload bytes
// from r into fr. maxFrameSize is the locally configured
// MAX_FRAME_SIZE; a frame advertising a larger length is a
// FrameSizeError without consuming the payload. An EOF while reading
// the header or payload is reported as ConnectionClosed.
func (fr *FrameHeader) ReadFrom(r io.Reader, maxFrameSize uint32) error {
	var hdr [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return wrapReadErr(err)
	}

	typ, flags, streamID, length := DecodeHeader(hdr[:])
	if length > maxFrameSize {
		return NewError(ErrCodeFrameSize, KindInvalidFrameType, "frame length %d exceeds max frame size %d", length, maxFrameSize)
	}

	fr.Type = typ
	fr.Flags = flags
	fr.StreamID = streamID
	fr.Length = length
	fr.payload = wire.Resize(fr.payload[:0], int(length))

	if length > 0 {
		if _, err := io.ReadFull(r, fr.payload); err != nil {
			return wrapReadErr(err)
		}
	}
	return nil
}

func wrapReadErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return NewError(0, KindConnectionClosed, "connection closed while reading frame: %v", err)
	}
	return err
}

// WriteTo serializes fr's header and payload to w in one call. The
// assembly buffer is pooled via bytebufferpool to keep one write from
// allocating on every frame, the same pooling idiom the codec already
// applies to FrameHeader itself.
func (fr *FrameHeader) WriteTo(w io.Writer) (int64, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	length := uint32(len(fr.payload))
	if fr.rawLength {
		length = fr.Length
	}
	bb.B = EncodeHeader(bb.B[:0], fr.Type, fr.Flags, fr.StreamID, length)
	bb.B = append(bb.B, fr.payload...)
	n, err := w.Write(bb.B)
	return int64(n), err
}

// WriteRawFrame writes a header/payload pair exactly as given,
// bypassing every consistency check EncodeHeader itself already
// skips. It exists so a test can construct a frame whose declared
// length disagrees with its actual payload size, or whose flags make
// no sense for its type — the class of malformed input this harness
// is built to produce.
func WriteRawFrame(w io.Writer, length uint32, typ FrameType, flags Flags, streamID uint32, payload []byte) error {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	bb.B = EncodeHeader(bb.B[:0], typ, flags, streamID, length)
	bb.B = append(bb.B, payload...)
	_, err := w.Write(bb.B)
	return err
}

// frameCodec is implemented by every frame payload type: Deserialize
// reads typed fields out of a FrameHeader already holding raw bytes;
// Serialize writes typed fields back into a FrameHeader's payload.
type frameCodec interface {
	Deserialize(fr *FrameHeader) error
	Serialize(fr *FrameHeader)
}

var (
	_ frameCodec = (*Data)(nil)
	_ frameCodec = (*HeadersFrame)(nil)
	_ frameCodec = (*Priority)(nil)
	_ frameCodec = (*RstStream)(nil)
	_ frameCodec = (*SettingsFrame)(nil)
	_ frameCodec = (*PushPromise)(nil)
	_ frameCodec = (*Ping)(nil)
	_ frameCodec = (*GoAway)(nil)
	_ frameCodec = (*WindowUpdate)(nil)
	_ frameCodec = (*Continuation)(nil)
)
