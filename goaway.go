package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// GoAway is the GOAWAY frame payload (RFC 7540 §6.8): the last stream
// id the sender processed, an error code, and optional debug data.
type GoAway struct {
	LastStreamID uint32
	Code         ErrorCode
	DebugData    []byte
}

func (ga *GoAway) Reset() {
	ga.LastStreamID = 0
	ga.Code = 0
	ga.DebugData = ga.DebugData[:0]
}

func (ga *GoAway) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) < 8 {
		return ErrMissingBytes
	}
	ga.LastStreamID = wire.BytesToUint32(fr.payload) & streamIDMask
	ga.Code = ErrorCode(wire.BytesToUint32(fr.payload[4:]))
	if len(fr.payload) > 8 {
		ga.DebugData = append(ga.DebugData[:0], fr.payload[8:]...)
	}
	return nil
}

func (ga *GoAway) Serialize(fr *FrameHeader) {
	payload := wire.AppendUint32Bytes(make([]byte, 0, 8+len(ga.DebugData)), ga.LastStreamID&streamIDMask)
	payload = wire.AppendUint32Bytes(payload, uint32(ga.Code))
	payload = append(payload, ga.DebugData...)
	fr.SetPayload(payload)
}
