package protocol

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryEnvelopeRoundTrip(t *testing.T) {
	e := &Envelope{
		Token:      "tok-abc123",
		SessionID:  "s1",
		FrameSeq:   42,
		Width:      640,
		Height:     360,
		Format:     "jpeg",
		ImageBytes: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}

	wire, err := e.EncodeBinary()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(wire)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)

	wire2, err := decoded.EncodeBinary()
	require.NoError(t, err)
	assert.Equal(t, wire, wire2, "encode(decode(wire)) must equal wire")
}

func TestBinaryEnvelopeEmptyFields(t *testing.T) {
	e := &Envelope{Format: "rgba", Width: 1, Height: 1, ImageBytes: []byte{0xFF}}
	wire, err := e.EncodeBinary()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(wire)
	require.NoError(t, err)
	assert.Equal(t, "", decoded.Token)
	assert.Equal(t, "", decoded.SessionID)
	assert.Equal(t, []byte{0xFF}, decoded.ImageBytes)
}

func TestDecodeEnvelopeRejectsTruncated(t *testing.T) {
	_, err := DecodeEnvelope([]byte{5, 'a', 'b'}) // declares token len 5, only 2 bytes follow
	require.Error(t, err)
	var malformed *ErrMalformed
	assert.ErrorAs(t, err, &malformed)
}

func TestDecodeEnvelopeRejectsEmpty(t *testing.T) {
	_, err := DecodeEnvelope(nil)
	require.Error(t, err)
}

func TestJSONEnvelopeFallback(t *testing.T) {
	payload := []byte("hello-image-bytes")
	je := jsonEnvelope{
		Token:    "tok-legacy",
		ID:       "session-legacy",
		Format:   "grayscale",
		Width:    100,
		Height:   200,
		Data:     base64.StdEncoding.EncodeToString(payload),
		FrameSeq: 7,
	}
	raw, err := json.Marshal(je)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "tok-legacy", decoded.Token)
	assert.Equal(t, "session-legacy", decoded.SessionID)
	assert.Equal(t, uint64(7), decoded.FrameSeq)
	assert.Equal(t, payload, decoded.ImageBytes)
}

func TestJSONEnvelopeRejectsBadBase64(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"token":"t","id":"s","format":"jpeg","width":1,"height":1,"data":"not-base64!!"}`))
	require.Error(t, err)
}

func TestChunkHeaderRoundTrip(t *testing.T) {
	h := ChunkHeader{MessageID: 0xDEADBEEF, ChunkIndex: 2, TotalChunks: 3}
	wire := EncodeChunkHeader(h)
	assert.Len(t, wire, ChunkHeaderSize)

	decoded, err := DecodeChunkHeader(wire)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestDecodeChunkHeaderRejectsShort(t *testing.T) {
	_, err := DecodeChunkHeader([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestResponseNeverOmitsEmptyDetections(t *testing.T) {
	resp := NewResponse(true, "ok", "f1", 1, 640, 480, nil)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"detections":[]`)
}
