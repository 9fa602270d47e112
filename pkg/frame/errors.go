package frame

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per client-side failure kind.
var (
	// ErrMissingPayload is returned when a request carries no frame at all.
	ErrMissingPayload = errors.New("frame: no valid frame provided")

	// ErrMalformedEncoding is returned when inline text lacks its header
	// separator or the body is not valid base64.
	ErrMalformedEncoding = errors.New("frame: malformed encoding")

	// ErrUnsupportedImage is returned when bytes are empty, truncated or
	// not a known image container.
	ErrUnsupportedImage = errors.New("frame: unsupported or corrupt image")
)

// Kind classifies a decode failure.
type Kind int

const (
	KindMissingPayload Kind = iota + 1
	KindMalformedEncoding
	KindUnsupportedImage
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMissingPayload:
		return "MissingPayload"
	case KindMalformedEncoding:
		return "MalformedEncoding"
	case KindUnsupportedImage:
		return "UnsupportedOrCorruptImage"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is the client-facing text for the kind.
func (k Kind) Message() string {
	switch k {
	case KindMissingPayload:
		return "No valid frame provided"
	case KindMalformedEncoding:
		return "Malformed frame encoding"
	case KindUnsupportedImage:
		return "Unsupported or corrupt image"
	default:
		return "Invalid frame"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindMissingPayload:
		return ErrMissingPayload
	case KindMalformedEncoding:
		return ErrMalformedEncoding
	case KindUnsupportedImage:
		return ErrUnsupportedImage
	default:
		return nil
	}
}

// DecodeError is returned by Decode. It always carries a Kind; Err holds
// the underlying codec or base64 error when there is one.
type DecodeError struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame [%s]: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("frame [%s]", e.Kind)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the kind, so errors.Is(err,
// ErrUnsupportedImage) works regardless of the wrapped cause.
func (e *DecodeError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Missing returns the MissingPayload error used by transports when a
// request has nothing to decode.
func Missing() error {
	return &DecodeError{Kind: KindMissingPayload}
}

func fail(kind Kind, err error) error {
	return &DecodeError{Kind: kind, Err: err}
}

// KindOf reports the decode failure kind of err, or 0 if err is not a
// decode error.
func KindOf(err error) Kind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
