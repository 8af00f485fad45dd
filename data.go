package h2wire

import "github.com/vtesthq/h2wire/internal/wire"

// Data is the DATA frame payload (RFC 7540 §6.1): application data,
// optionally padded, optionally closing the stream.
type Data struct {
	EndStreamFlag bool
	Padded        bool
	b             []byte
}

func (d *Data) Reset() {
	d.EndStreamFlag = false
	d.Padded = false
	d.b = d.b[:0]
}

func (d *Data) Bytes() []byte { return d.b }

func (d *Data) SetBytes(b []byte) { d.b = append(d.b[:0], b...) }

func (d *Data) Append(b []byte) { d.b = append(d.b, b...) }

func (d *Data) Len() int { return len(d.b) }

// Deserialize strips padding (if FlagPadded is set) and records
// END_STREAM.
func (d *Data) Deserialize(fr *FrameHeader) error {
	payload := fr.payload

	if fr.Flags.Has(FlagPadded) {
		p, err := wire.CutPadding(payload, int(fr.Length))
		if err != nil {
			return err
		}
		payload = p
		d.Padded = true
	}

	d.EndStreamFlag = fr.Flags.Has(FlagEndStream)
	d.b = append(d.b[:0], payload...)
	return nil
}

// Serialize writes the DATA payload, adding padding (via
// internal/wire.AddPadding, which uses github.com/valyala/fastrand
// for the pad length) when Padded is set.
func (d *Data) Serialize(fr *FrameHeader) {
	if d.EndStreamFlag {
		fr.Flags = fr.Flags.Add(FlagEndStream)
	}

	payload := d.b
	if d.Padded {
		fr.Flags = fr.Flags.Add(FlagPadded)
		payload = wire.AddPadding(append([]byte(nil), d.b...))
	}

	fr.SetPayload(payload)
}
