package h2wire

// Ping is the PING frame payload (RFC 7540 §6.7): an 8-byte opaque
// value, echoed with ACK set by the receiver.
type Ping struct {
	Ack  bool
	Data [8]byte
}

func (p *Ping) Reset() {
	p.Ack = false
	p.Data = [8]byte{}
}

func (p *Ping) Deserialize(fr *FrameHeader) error {
	if len(fr.payload) < 8 {
		return ErrMissingBytes
	}
	p.Ack = fr.Flags.Has(FlagAck)
	copy(p.Data[:], fr.payload)
	return nil
}

func (p *Ping) Serialize(fr *FrameHeader) {
	if p.Ack {
		fr.Flags = fr.Flags.Add(FlagAck)
	}
	fr.SetPayload(p.Data[:])
}
