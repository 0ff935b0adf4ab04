package core

import (
	"errors"

	"yasbit/pkg/utils"
)

var (
	errInvalidHashLength = errors.New("core: hash must be 32 bytes")

	// ErrInvalidMagic is returned by Parse when the envelope magic does not
	// match any accepted network.
	ErrInvalidMagic = errors.New("wire: invalid magic bytes")
	// ErrInvalidChecksum is returned by Parse when the envelope checksum
	// disagrees with the payload.
	ErrInvalidChecksum = errors.New("wire: invalid checksum")
	// ErrUnknownMessage is returned by Parse for a command name outside the
	// recognized set.
	ErrUnknownMessage = errors.New("wire: unknown message command")

	ErrAlreadyExists      = errors.New("storage: block already exists")
	ErrBlockNotFound      = errors.New("storage: block not found")
	ErrScriptInvalid      = errors.New("script: transaction marked invalid")
	ErrStackUnderflow     = errors.New("script: stack underflow")
	ErrUnknownOpcode      = errors.New("script: unknown opcode")
	ErrPrevOutputNotFound = errors.New("script: referenced previous output not found")
)

// PartialErr is returned by Parse when fewer bytes than required are
// buffered; the caller should read more and retry. It is not a Protocol
// error — it is a continuation.
type PartialErr struct{ Needed int }

func (e *PartialErr) Error() string { return "wire: partial message, need more bytes" }

// Protocol, Socket, Semantic, Storage and Timeout wrap an underlying error
// with the Kind the Coordinator/Validator dispatch on, per the error
// handling design: Protocol errors cause the read loop to discard up to the
// next framing boundary and continue; Socket errors emit ConnectionClosed;
// Semantic errors cause the Validator to reject a block; Storage errors halt
// validation progress; Timeout errors trigger peer replacement.
func Protocol(err error) error { return utils.WithKind(utils.KindProtocol, err) }
func Socket(err error) error   { return utils.WithKind(utils.KindSocket, err) }
func Semantic(err error) error { return utils.WithKind(utils.KindSemantic, err) }
func Storage(err error) error  { return utils.WithKind(utils.KindStorage, err) }
func Timeout(err error) error  { return utils.WithKind(utils.KindTimeout, err) }
