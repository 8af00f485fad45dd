package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// PushPromise is the PUSH_PROMISE frame payload (RFC 7540 §6.6): the
// promised stream id followed by a header block fragment. Receive-side
// handling is resolved in SPEC_FULL.md §9: rejected as PROTOCOL_ERROR
// unless the local side has advertised ENABLE_PUSH=1.
type PushPromise struct {
	Padded           bool
	EndHeadersFlag   bool
	PromisedStreamID uint32
	rawHeaders       []byte
}

func (pp *PushPromise) Reset() {
	pp.Padded = false
	pp.EndHeadersFlag = false
	pp.PromisedStreamID = 0
	pp.rawHeaders = pp.rawHeaders[:0]
}

func (pp *PushPromise) HeaderBlock() []byte { return pp.rawHeaders }

func (pp *PushPromise) SetHeaderBlock(b []byte) { pp.rawHeaders = append(pp.rawHeaders[:0], b...) }

func (pp *PushPromise) Deserialize(fr *FrameHeader) error {
	payload := fr.payload

	if fr.Flags.Has(FlagPadded) {
		p, err := wire.CutPadding(payload, int(fr.Length))
		if err != nil {
			return err
		}
		payload = p
		pp.Padded = true
	}

	if len(payload) < 4 {
		return ErrMissingBytes
	}

	pp.PromisedStreamID = wire.BytesToUint32(payload) & streamIDMask
	pp.rawHeaders = append(pp.rawHeaders[:0], payload[4:]...)
	pp.EndHeadersFlag = fr.Flags.Has(FlagEndHeaders)
	return nil
}

func (pp *PushPromise) Serialize(fr *FrameHeader) {
	if pp.EndHeadersFlag {
		fr.Flags = fr.Flags.Add(FlagEndHeaders)
	}

	payload := wire.AppendUint32Bytes(make([]byte, 0, 4+len(pp.rawHeaders)), pp.PromisedStreamID&streamIDMask)
	payload = append(payload, pp.rawHeaders...)

	if pp.Padded {
		fr.Flags = fr.Flags.Add(FlagPadded)
		payload = wire.AddPadding(payload)
	}

	fr.SetPayload(payload)
}
