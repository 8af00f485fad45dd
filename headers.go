package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// HeadersFrame is the HEADERS frame payload (RFC 7540 §6.2): a
// (possibly truncated) HPACK header block, an optional priority
// specification, and the two stream-lifecycle flags.
type HeadersFrame struct {
	Padded        bool
	HasPriority   bool
	Exclusive     bool
	DependsOn     uint32
	Weight        uint8
	EndStreamFlag bool
	EndHeadersFlag bool
	rawHeaders    []byte
}

func (h *HeadersFrame) Reset() {
	h.Padded = false
	h.HasPriority = false
	h.Exclusive = false
	h.DependsOn = 0
	h.Weight = 0
	h.EndStreamFlag = false
	h.EndHeadersFlag = false
	h.rawHeaders = h.rawHeaders[:0]
}

func (h *HeadersFrame) HeaderBlock() []byte { return h.rawHeaders }

func (h *HeadersFrame) SetHeaderBlock(b []byte) { h.rawHeaders = append(h.rawHeaders[:0], b...) }

func (h *HeadersFrame) AppendHeaderBlock(b []byte) { h.rawHeaders = append(h.rawHeaders, b...) }

// Deserialize peels off padding and the optional 5-byte priority
// field before recording the remaining header block fragment.
func (h *HeadersFrame) Deserialize(fr *FrameHeader) error {
	payload := fr.payload

	if fr.Flags.Has(FlagPadded) {
		p, err := wire.CutPadding(payload, int(fr.Length))
		if err != nil {
			return err
		}
		payload = p
		h.Padded = true
	}

	if fr.Flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return ErrMissingBytes
		}
		dep := wire.BytesToUint32(payload)
		h.Exclusive = dep&0x80000000 != 0
		h.DependsOn = dep & streamIDMask
		h.Weight = payload[4]
		h.HasPriority = true
		payload = payload[5:]
	}

	h.EndStreamFlag = fr.Flags.Has(FlagEndStream)
	h.EndHeadersFlag = fr.Flags.Has(FlagEndHeaders)
	h.rawHeaders = append(h.rawHeaders[:0], payload...)
	return nil
}

func (h *HeadersFrame) Serialize(fr *FrameHeader) {
	if h.EndStreamFlag {
		fr.Flags = fr.Flags.Add(FlagEndStream)
	}
	if h.EndHeadersFlag {
		fr.Flags = fr.Flags.Add(FlagEndHeaders)
	}

	payload := make([]byte, 0, 6+len(h.rawHeaders))

	if h.HasPriority {
		fr.Flags = fr.Flags.Add(FlagPriority)
		dep := h.DependsOn & streamIDMask
		if h.Exclusive {
			dep |= 0x80000000
		}
		payload = wire.AppendUint32Bytes(payload, dep)
		payload = append(payload, h.Weight)
	}

	payload = append(payload, h.rawHeaders...)

	if h.Padded {
		fr.Flags = fr.Flags.Add(FlagPadded)
		payload = wire.AddPadding(payload)
	}

	fr.SetPayload(payload)
}
