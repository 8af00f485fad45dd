package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// Priority is the PRIORITY frame payload (RFC 7540 §6.3): a fixed
// 5-byte stream dependency/weight pair. This harness records it but
// does not implement scheduling — the server-priority tree is
// explicitly out of scope (spec.md §1's Non-goals).
type Priority struct {
	Exclusive bool
	DependsOn uint32
	Weight    uint8
}

func (p *Priority) Reset() {
	p.Exclusive = false
	p.DependsOn = 0
	p.Weight = 0
}

func (p *Priority) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) < 5 {
		return ErrMissingBytes
	}
	dep := wire.BytesToUint32(fr.payload)
	p.Exclusive = dep&0x80000000 != 0
	p.DependsOn = dep & streamIDMask
	p.Weight = fr.payload[4]
	return nil
}

func (p *Priority) Serialize(fr *FrameHeader) {
	dep := p.DependsOn & streamIDMask
	if p.Exclusive {
		dep |= 0x80000000
	}
	payload := wire.AppendUint32Bytes(make([]byte, 0, 5), dep)
	payload = append(payload, p.Weight)
	fr.SetPayload(payload)
}
