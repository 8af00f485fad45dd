package h2wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHeader_RoundTrip(t *testing.T) {
	b := EncodeHeader(nil, FrameHeaders, FlagEndStream|FlagEndHeaders, 7, 42)
	require.Len(t, b, FrameHeaderLen)

	typ, flags, streamID, length := DecodeHeader(b)
	assert.Equal(t, FrameHeaders, typ)
	assert.True(t, flags.Has(FlagEndStream))
	assert.True(t, flags.Has(FlagEndHeaders))
	assert.Equal(t, uint32(7), streamID)
	assert.Equal(t, uint32(42), length)
}

func TestEncodeHeader_ClearsReservedBit(t *testing.T) {
	b := EncodeHeader(nil, FrameData, FlagNone, 1<<31|5, 0)
	_, _, streamID, _ := DecodeHeader(b)
	assert.Equal(t, uint32(5), streamID, "the reserved high bit of the stream id is never encoded")
}

func TestFrameHeader_WriteToReadFrom_RoundTrip(t *testing.T) {
	src := AcquireFrameHeader()
	defer ReleaseFrameHeader(src)
	src.Type = FrameData
	src.StreamID = 3
	src.SetPayload([]byte("hello http/2"))

	var buf bytes.Buffer
	_, err := src.WriteTo(&buf)
	require.NoError(t, err)

	dst := AcquireFrameHeader()
	defer ReleaseFrameHeader(dst)
	require.NoError(t, dst.ReadFrom(&buf, MaxPayloadLen))

	assert.Equal(t, src.Type, dst.Type)
	assert.Equal(t, src.StreamID, dst.StreamID)
	assert.Equal(t, src.Payload(), dst.Payload())
}

func TestFrameHeader_ReadFrom_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeHeader(nil, FrameData, FlagNone, 1, 100))
	buf.Write(make([]byte, 100))

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	err := fr.ReadFrom(&buf, 50)
	require.Error(t, err)

	herr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrCodeFrameSize, herr.Code)
}

func TestFrameHeader_ReadFrom_EOFIsConnectionClosed(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	err := fr.ReadFrom(&bytes.Buffer{}, MaxPayloadLen)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestWriteRawFrame_IgnoresPayloadLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRawFrame(&buf, 999, FrameData, FlagNone, 1, []byte("short")))

	hdr := buf.Bytes()[:FrameHeaderLen]
	_, _, _, length := DecodeHeader(hdr)
	assert.Equal(t, uint32(999), length, "WriteRawFrame writes the declared length verbatim, even when it lies")
	assert.Equal(t, FrameHeaderLen+len("short"), buf.Len())
}

func TestDataFrame_RoundTrip(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	(&Data{EndStreamFlag: true, b: []byte("payload")}).Serialize(fr)

	d := &Data{}
	require.NoError(t, d.Deserialize(fr))
	assert.True(t, d.EndStreamFlag)
	assert.Equal(t, []byte("payload"), d.Bytes())
}

func TestHeadersFrame_RoundTripWithPriority(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	(&HeadersFrame{
		HasPriority:    true,
		Exclusive:      true,
		DependsOn:      9,
		Weight:         200,
		EndHeadersFlag: true,
		rawHeaders:     []byte("hpack-block"),
	}).Serialize(fr)

	h := &HeadersFrame{}
	require.NoError(t, h.Deserialize(fr))
	assert.True(t, h.HasPriority)
	assert.True(t, h.Exclusive)
	assert.Equal(t, uint32(9), h.DependsOn)
	assert.Equal(t, uint8(200), h.Weight)
	assert.True(t, h.EndHeadersFlag)
	assert.Equal(t, []byte("hpack-block"), h.HeaderBlock())
}

func TestPingFrame_RoundTrip(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	var data [8]byte
	copy(data[:], "ABCDEFGH")
	(&Ping{Ack: true, Data: data}).Serialize(fr)

	p := &Ping{}
	require.NoError(t, p.Deserialize(fr))
	assert.True(t, p.Ack)
	assert.Equal(t, data, p.Data)
}

func TestGoAwayFrame_RoundTrip(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	(&GoAway{LastStreamID: 17, Code: ErrCodeProtocol, DebugData: []byte("why")}).Serialize(fr)

	ga := &GoAway{}
	require.NoError(t, ga.Deserialize(fr))
	assert.Equal(t, uint32(17), ga.LastStreamID)
	assert.Equal(t, ErrCodeProtocol, ga.Code)
	assert.Equal(t, []byte("why"), ga.DebugData)
}

func TestWindowUpdateFrame_RoundTrip(t *testing.T) {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	(&WindowUpdate{Increment: 65535}).Serialize(fr)

	wu := &WindowUpdate{}
	require.NoError(t, wu.Deserialize(fr))
	assert.Equal(t, uint32(65535), wu.Increment)
}
