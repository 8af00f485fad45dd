package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// WindowUpdate is the WINDOW_UPDATE frame payload (RFC 7540 §6.9): a
// fixed 4-byte flow-control credit increment. A zero increment is a
// protocol violation the driver rejects (spec.md §8 invariant 7), not
// something the codec itself refuses to encode or decode.
type WindowUpdate struct {
	Increment uint32
}

func (wu *WindowUpdate) Reset() { wu.Increment = 0 }

func (wu *WindowUpdate) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) < 4 {
		return ErrMissingBytes
	}
	wu.Increment = wire.BytesToUint32(fr.payload) & streamIDMask
	return nil
}

func (wu *WindowUpdate) Serialize(fr *FrameHeader) {
	fr.SetPayload(wire.AppendUint32Bytes(make([]byte, 0, 4), wu.Increment&streamIDMask))
}
