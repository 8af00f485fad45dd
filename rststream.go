package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// RstStream is the RST_STREAM frame payload (RFC 7540 §6.4): a fixed
// 4-byte error code abruptly terminating a stream.
type RstStream struct {
	Code ErrorCode
}

func (r *RstStream) Reset() { r.Code = 0 }

func (r *RstStream) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) < 4 {
		return ErrMissingBytes
	}
	r.Code = ErrorCode(wire.BytesToUint32(fr.payload))
	return nil
}

func (r *RstStream) Serialize(fr *FrameHeader) {
	fr.SetPayload(wire.AppendUint32Bytes(make([]byte, 0, 4), uint32(r.Code)))
}
