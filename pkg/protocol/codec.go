package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// DefaultMaxFrameSize bounds a single wire frame. Frames beyond this are
	// rejected to protect the server from hostile or buggy peers.
	DefaultMaxFrameSize = 64 * 1024

	// delimiter terminates every frame. JSON string escaping guarantees the
	// payload itself never contains a raw newline.
	delimiter = '\n'
)

var (
	// ErrMalformedMessage indicates a frame that cannot be parsed into a message
	ErrMalformedMessage = fmt.Errorf("malformed message")

	// ErrFrameTooLarge indicates a frame exceeding the decoder's size limit
	ErrFrameTooLarge = fmt.Errorf("frame exceeds maximum size")
)

// Encoder writes messages to a byte stream, one JSON object per
// newline-terminated frame. Encoder is not safe for concurrent use; callers
// must serialize writes to the same peer.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode serializes one message and appends the frame delimiter
func (e *Encoder) Encode(msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	payload = append(payload, delimiter)
	if _, err := e.w.Write(payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads delimited frames from a byte stream. Incomplete frames are
// buffered across reads; Decode blocks until a full frame is available or the
// stream fails.
type Decoder struct {
	r       *bufio.Reader
	maxSize int
}

// NewDecoder creates a decoder with the given read buffer size and maximum
// frame size. Zero or negative values take defaults.
func NewDecoder(r io.Reader, bufferSize, maxFrameSize int) *Decoder {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Decoder{
		r:       bufio.NewReaderSize(r, bufferSize),
		maxSize: maxFrameSize,
	}
}

// Decode reads the next complete frame and parses it. Blank frames are
// skipped. Returns ErrFrameTooLarge for oversize frames (the remainder of the
// frame is consumed so the stream stays usable), ErrMalformedMessage for
// unparseable payloads, and the underlying error (including io.EOF) on stream
// failure.
func (d *Decoder) Decode() (*Message, error) {
	for {
		frame, err := d.readFrame()
		if err != nil {
			return nil, err
		}

		frame = bytes.TrimSpace(frame)
		if len(frame) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if msg.Type == "" {
			return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
		}
		if msg.Data == nil {
			msg.Data = map[string]any{}
		}
		return &msg, nil
	}
}

// readFrame accumulates buffer slices until the delimiter is observed,
// enforcing the frame size limit.
func (d *Decoder) readFrame() ([]byte, error) {
	var frame []byte
	oversize := false

	for {
		chunk, err := d.r.ReadSlice(delimiter)
		if !oversize {
			frame = append(frame, chunk...)
			if len(frame) > d.maxSize {
				oversize = true
			}
		}

		switch err {
		case nil:
			if oversize {
				return nil, ErrFrameTooLarge
			}
			return frame, nil
		case bufio.ErrBufferFull:
			continue
		default:
			if len(frame) > 0 && err == io.EOF {
				// Trailing partial frame without delimiter; treat as a
				// truncated stream.
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}
