package compute

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size limits for the worker protocol.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
)

// Frame type discriminants.
const (
	FrameTypeStep   = "step"
	FrameTypeResult = "result"
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a worker protocol error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error { return e.Err }

// IsFrameError reports whether err is a worker protocol error.
func IsFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}

// stepFrame is an optimizer iteration snapshot on the wire.
type stepFrame struct {
	Type string `msgpack:"type"`
	Step Step   `msgpack:"step"`
}

// resultFrame is the terminal frame of a worker exchange.
type resultFrame struct {
	Type       string  `msgpack:"type"`
	Result     Result  `msgpack:"result"`
	StepsTaken int     `msgpack:"steps_taken"`
	Error      *string `msgpack:"error,omitempty"`
}

// frameTypeProbe peeks at the type discriminant without a full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// WriteFrame writes one length-prefixed msgpack frame.
func WriteFrame(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "cannot encode frame", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return &FrameError{Kind: FrameErrorPartial, Msg: "cannot write length prefix", Err: err}
	}
	if _, err := w.Write(payload); err != nil {
		return &FrameError{Kind: FrameErrorPartial, Msg: "cannot write payload", Err: err}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame payload.
//
// Errors:
//   - io.EOF: stream ended cleanly before a frame started
//   - FrameError with Kind=FrameErrorPartial: incomplete frame
//   - FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "cannot read length prefix", Err: err}
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", size, MaxPayloadSize),
		}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "cannot read payload", Err: err}
	}
	return payload, nil
}

// decodeFrame decodes a payload into a step or result frame.
func decodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "cannot probe frame type", Err: err}
	}

	switch probe.Type {
	case FrameTypeStep:
		var f stepFrame
		if err := msgpack.Unmarshal(payload, &f); err != nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "cannot decode step frame", Err: err}
		}
		return &f, nil
	case FrameTypeResult:
		var f resultFrame
		if err := msgpack.Unmarshal(payload, &f); err != nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "cannot decode result frame", Err: err}
		}
		return &f, nil
	default:
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unknown frame type %q", probe.Type)}
	}
}
