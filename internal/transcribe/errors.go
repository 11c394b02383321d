package transcribe

import (
	"errors"
	"fmt"
)

var ErrMissingCredential = errors.New("transcription API key is not set")

type Kind int

const (
	// KindCredential: no API key configured; nothing was sent.
	KindCredential Kind = iota + 1
	KindNetwork
	KindAuth
	// KindRejected covers 4xx responses, unreadable responses and audio the
	// client refuses to upload.
	KindRejected
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "missing credential"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "authentication"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned for every failed transcription.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcription failed (%s, HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transcription failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a transcription error, or 0 for anything else.
func KindOf(err error) Kind {
	var tErr *Error
	if errors.As(err, &tErr) {
		return tErr.Kind
	}
	return 0
}
