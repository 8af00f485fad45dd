package h2wire

// Continuation is the CONTINUATION frame payload (RFC 7540 §6.10): a
// header block fragment continuing a HEADERS or PUSH_PROMISE whose
// block did not fit in one frame. Per SPEC_FULL.md §9, the client
// driver emits these itself when an outgoing block exceeds the peer's
// MAX_FRAME_SIZE; on receive, fragments are concatenated by the
// stream's header accumulator until END_HEADERS.
type Continuation struct {
	EndHeadersFlag bool
	rawHeaders     []byte
}

func (c *Continuation) Reset() {
	c.EndHeadersFlag = false
	c.rawHeaders = c.rawHeaders[:0]
}

func (c *Continuation) HeaderBlock() []byte { return c.rawHeaders }

func (c *Continuation) SetHeaderBlock(b []byte) { c.rawHeaders = append(c.rawHeaders[:0], b...) }

func (c *Continuation) Deserialize(fr *FrameHeader) error {
	c.EndHeadersFlag = fr.Flags.Has(FlagEndHeaders)
	c.rawHeaders = append(c.rawHeaders[:0], fr.payload...)
	return nil
}

func (c *Continuation) Serialize(fr *FrameHeader) {
	if c.EndHeadersFlag {
		fr.Flags = fr.Flags.Add(FlagEndHeaders)
	}
	fr.SetPayload(c.rawHeaders)
}
