package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Frames on the wire are a 4-byte big-endian unsigned length followed by a
// UTF-8 JSON record of exactly that many bytes.
const lengthPrefixSize = 4

// ErrFrameTooLarge reports a length prefix exceeding the configured limit.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// ErrEmptyFrame reports a zero-length frame, which no valid record produces.
var ErrEmptyFrame = errors.New("wire: empty frame")

// WriteFrame writes a single length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads a single length-prefixed frame from r. A clean EOF before
// the prefix yields io.EOF; a stream truncated mid-frame yields
// io.ErrUnexpectedEOF. Callers treat both as "no message".
func ReadFrame(r io.Reader, maxFrame int64) ([]byte, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if maxFrame > 0 && int64(length) > maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// Encoder serializes messages as length-prefixed JSON frames.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps a writer with the framing encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals the message and writes it as one frame.
func (e *Encoder) Encode(msg *Message) error {
	if e == nil || e.w == nil {
		return errors.New("wire: encoder not initialized")
	}
	if msg == nil {
		return errors.New("wire: nil message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return WriteFrame(e.w, payload)
}

// Marshal renders a message to the frame payload without the length prefix.
// The broadcaster uses it to serialize a snapshot once and fan the bytes out
// to every connection.
func Marshal(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("wire: nil message")
	}
	return json.Marshal(msg)
}

// Decoder reads length-prefixed JSON frames and unmarshals them.
type Decoder struct {
	r        io.Reader
	maxFrame int64
}

// NewDecoder wraps a reader with the framing decoder. maxFrame bounds the
// accepted frame size; zero disables the limit.
func NewDecoder(r io.Reader, maxFrame int64) *Decoder {
	return &Decoder{r: r, maxFrame: maxFrame}
}

// Decode reads the next frame and parses it into a message. Any framing or
// parse error means the stream is unusable and the connection should close.
func (d *Decoder) Decode() (*Message, error) {
	if d == nil || d.r == nil {
		return nil, errors.New("wire: decoder not initialized")
	}
	payload, err := ReadFrame(d.r, d.maxFrame)
	if err != nil {
		return nil, err
	}
	return Parse(payload)
}

// Parse validates and unmarshals one record payload. Transports with their
// own framing, such as WebSocket, use it directly instead of a Decoder.
func Parse(payload []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("wire: undecodable frame: %w", err)
	}
	if msg.Type == "" {
		return nil, errors.New("wire: frame missing type")
	}
	return &msg, nil
}
