// Package hpack adapts golang.org/x/net/http2/hpack to the narrow
// two-operation boundary the connection driver expects: encode a
// header list to a block, decode a block back to a header list. The
// core never reaches into HPACK's internal dynamic table; it only
// keeps the encoder and decoder configured with the same
// HEADER_TABLE_SIZE, per RFC 7541 §4.
package hpack

import (
	"golang.org/x/net/http2/hpack"
)

// HeaderField is a name/value pair, optionally marked "never index"
// for sensitive values (authorization headers, cookies).
type HeaderField struct {
	Name      string
	Value     string
	Sensitive bool
}

// IsPseudo reports whether the field is an HTTP/2 pseudo-header
// (its name begins with ':').
func (hf HeaderField) IsPseudo() bool {
	return len(hf.Name) > 0 && hf.Name[0] == ':'
}

// Encoder turns a header list into an HPACK-compressed block.
type Encoder struct {
	enc *hpack.Encoder
	buf *bufWriter
}

type bufWriter struct{ b []byte }

func (w *bufWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// NewEncoder builds an encoder with the given dynamic table size.
func NewEncoder(tableSize uint32) *Encoder {
	w := &bufWriter{}
	enc := hpack.NewEncoder(w)
	enc.SetMaxDynamicTableSize(tableSize)
	return &Encoder{enc: enc, buf: w}
}

// SetMaxDynamicTableSize updates the encoder's table size, called
// whenever the peer's HEADER_TABLE_SIZE setting changes.
func (e *Encoder) SetMaxDynamicTableSize(size uint32) {
	e.enc.SetMaxDynamicTableSize(size)
}

// Encode serializes fields into a single header block.
func (e *Encoder) Encode(fields []HeaderField) ([]byte, error) {
	e.buf.b = e.buf.b[:0]
	for _, hf := range fields {
		err := e.enc.WriteField(hpack.HeaderField{
			Name:      hf.Name,
			Value:     hf.Value,
			Sensitive: hf.Sensitive,
		})
		if err != nil {
			return nil, err
		}
	}
	out := make([]byte, len(e.buf.b))
	copy(out, e.buf.b)
	return out, nil
}

// Decoder turns an HPACK-compressed block back into a header list.
type Decoder struct {
	dec    *hpack.Decoder
	fields []HeaderField
}

// NewDecoder builds a decoder with the given dynamic table size. A
// non-zero maxHeaderListSize caps the length of each decoded header
// name or value string; the total size of the header list is not
// capped.
func NewDecoder(tableSize uint32, maxHeaderListSize uint32) *Decoder {
	d := &Decoder{}
	d.dec = hpack.NewDecoder(tableSize, func(f hpack.HeaderField) {
		d.fields = append(d.fields, HeaderField{
			Name:      f.Name,
			Value:     f.Value,
			Sensitive: f.Sensitive,
		})
	})
	if maxHeaderListSize > 0 {
		d.dec.SetMaxStringLength(int(maxHeaderListSize))
	}
	return d
}

// SetMaxDynamicTableSize updates the decoder's table size.
func (d *Decoder) SetMaxDynamicTableSize(size uint32) {
	d.dec.SetMaxDynamicTableSize(size)
}

// Decode consumes block and returns the fields decoded during this
// call only. The caller assembles the whole block (HEADERS plus any
// CONTINUATION fragments, in order) before calling it; the connection
// driver does this with the stream's header accumulator and calls
// Decode once END_HEADERS has arrived.
func (d *Decoder) Decode(block []byte) ([]HeaderField, error) {
	d.fields = d.fields[:0]
	if _, err := d.dec.Write(block); err != nil {
		return nil, err
	}
	out := make([]HeaderField, len(d.fields))
	copy(out, d.fields)
	return out, nil
}

// Close releases decoder resources.
func (d *Decoder) Close() error {
	return d.dec.Close()
}
