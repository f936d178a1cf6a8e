// Package protocol implements the gateway's wire codec: the length-prefixed
// binary frame envelope, the legacy JSON envelope, and the UDP chunk header.
package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Envelope is the logical frame unit the gateway consumes, regardless of
// which wire framing carried it.
type Envelope struct {
	Token       string
	SessionID   string
	FrameSeq    uint64
	Width       int32
	Height      int32
	Format      string
	ImageBytes  []byte
}

// ErrMalformed is returned by DecodeEnvelope when the wire bytes cannot be
// parsed as either framing.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}

// jsonEnvelope is the legacy JSON wire shape, kept for older clients per
// the gateway's compatibility requirement.
type jsonEnvelope struct {
	Token  string `json:"token"`
	ID     string `json:"id"`
	Format string `json:"format"`
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
	Data   string `json:"data"`
	// FrameSeq is optional on the legacy wire shape; absent means 0.
	FrameSeq uint64 `json:"frame_sequence"`
}

// DecodeEnvelope parses a single frame's wire bytes into an Envelope. It
// isolates the "first byte is '{'" compatibility heuristic behind this one
// function so callers never branch on framing themselves.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, &ErrMalformed{Reason: "empty buffer"}
	}
	if data[0] == '{' {
		return decodeJSONEnvelope(data)
	}
	return decodeBinaryEnvelope(data)
}

func decodeBinaryEnvelope(data []byte) (*Envelope, error) {
	r := bytes.NewReader(data)

	tokenLen, err := r.ReadByte()
	if err != nil {
		return nil, &ErrMalformed{Reason: "truncated before token length"}
	}
	token := make([]byte, tokenLen)
	if _, err := readFull(r, token); err != nil {
		return nil, &ErrMalformed{Reason: "truncated token"}
	}

	sessionLen, err := r.ReadByte()
	if err != nil {
		return nil, &ErrMalformed{Reason: "truncated before session id length"}
	}
	sessionID := make([]byte, sessionLen)
	if _, err := readFull(r, sessionID); err != nil {
		return nil, &ErrMalformed{Reason: "truncated session id"}
	}

	var frameSeq uint64
	if err := binary.Read(r, binary.BigEndian, &frameSeq); err != nil {
		return nil, &ErrMalformed{Reason: "truncated frame sequence"}
	}

	var width, height int32
	if err := binary.Read(r, binary.BigEndian, &width); err != nil {
		return nil, &ErrMalformed{Reason: "truncated width"}
	}
	if err := binary.Read(r, binary.BigEndian, &height); err != nil {
		return nil, &ErrMalformed{Reason: "truncated height"}
	}

	formatLen, err := r.ReadByte()
	if err != nil {
		return nil, &ErrMalformed{Reason: "truncated before format length"}
	}
	format := make([]byte, formatLen)
	if _, err := readFull(r, format); err != nil {
		return nil, &ErrMalformed{Reason: "truncated format"}
	}

	imageBytes := make([]byte, r.Len())
	if _, err := readFull(r, imageBytes); err != nil {
		return nil, &ErrMalformed{Reason: "truncated image payload"}
	}

	return &Envelope{
		Token:      string(token),
		SessionID:  string(sessionID),
		FrameSeq:   frameSeq,
		Width:      width,
		Height:     height,
		Format:     string(format),
		ImageBytes: imageBytes,
	}, nil
}

func decodeJSONEnvelope(data []byte) (*Envelope, error) {
	var je jsonEnvelope
	if err := json.Unmarshal(data, &je); err != nil {
		return nil, &ErrMalformed{Reason: "invalid json: " + err.Error()}
	}
	imageBytes, err := base64.StdEncoding.DecodeString(je.Data)
	if err != nil {
		return nil, &ErrMalformed{Reason: "invalid base64 data: " + err.Error()}
	}
	return &Envelope{
		Token:      je.Token,
		SessionID:  je.ID,
		FrameSeq:   je.FrameSeq,
		Width:      je.Width,
		Height:     je.Height,
		Format:     je.Format,
		ImageBytes: imageBytes,
	}, nil
}

// EncodeBinary serializes the envelope back into the binary framing. Used
// by tests to assert the encode-decode round trip, and by any component
// that needs to re-emit a frame envelope verbatim.
func (e *Envelope) EncodeBinary() ([]byte, error) {
	if len(e.Token) > 255 {
		return nil, fmt.Errorf("token too long: %d bytes", len(e.Token))
	}
	if len(e.SessionID) > 255 {
		return nil, fmt.Errorf("session id too long: %d bytes", len(e.SessionID))
	}
	if len(e.Format) > 255 {
		return nil, fmt.Errorf("format too long: %d bytes", len(e.Format))
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(byte(len(e.Token)))
	buf.WriteString(e.Token)
	buf.WriteByte(byte(len(e.SessionID)))
	buf.WriteString(e.SessionID)
	binary.Write(buf, binary.BigEndian, e.FrameSeq)
	binary.Write(buf, binary.BigEndian, e.Width)
	binary.Write(buf, binary.BigEndian, e.Height)
	buf.WriteByte(byte(len(e.Format)))
	buf.WriteString(e.Format)
	buf.Write(e.ImageBytes)

	return buf.Bytes(), nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := r.Read(buf)
	if err != nil || n != len(buf) {
		return n, fmt.Errorf("short read: got %d want %d", n, len(buf))
	}
	return n, nil
}
