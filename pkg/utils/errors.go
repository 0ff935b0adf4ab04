// Package utils provides shared helpers used across yasbit.
package utils

import (
	"errors"
	"fmt"
)

// Wrap adds context to an error message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Kind classifies an error the way the core event loop needs to dispatch on
// it: by category, not by message text.
type Kind int

const (
	// KindProtocol covers bad magic, bad checksum, unknown command and
	// truncated frames. A Partial parse is a continuation, not an error.
	KindProtocol Kind = iota
	// KindSocket covers read/write failures and EOF.
	KindSocket
	// KindSemantic covers hash mismatch, Merkle mismatch and script failure.
	KindSemantic
	// KindStorage covers persistence-layer failures.
	KindStorage
	// KindTimeout covers a block that missed its delivery SLA.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindSocket:
		return "socket"
	case KindSemantic:
		return "semantic"
	case KindStorage:
		return "storage"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// KindError pairs an error with the Kind that should drive recovery.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *KindError) Unwrap() error { return e.Err }

// WithKind tags err with a Kind so callers can switch on category instead of
// parsing message text. Returns nil if err is nil.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// AsKind reports the Kind carried by err, if any.
func AsKind(err error) (Kind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return 0, false
}
