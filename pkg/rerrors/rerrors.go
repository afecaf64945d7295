// Package rerrors defines the error kinds from spec §7, as sentinel errors
// usable with errors.Is, built on github.com/pkg/errors rather than bare
// fmt.Errorf so call sites can attach context without losing the kind.
package rerrors

import "github.com/pkg/errors"

// User-facing kinds: returned to the submitter.
var (
	// ErrSubmitTooLarge is returned when a message exceeds an endpoint's
	// configured maximum size. Nothing is queued.
	ErrSubmitTooLarge = errors.New("relaynet: message exceeds max_message_size")

	// ErrNilArgument is returned when a façade call receives a nil/undefined
	// argument.
	ErrNilArgument = errors.New("relaynet: nil argument")

	// ErrPeerNotConnected is returned when a unicast submission names a peer
	// with no endpoint.
	ErrPeerNotConnected = errors.New("relaynet: peer not connected")
)

// Protocol-internal kinds: counted and suppressed, never returned to a
// submitter, never tear down a connection.
var (
	// ErrFramingOverflow: a chosen packet's encoded payload exceeds the hard
	// byte cap. Fatal to that frame's emission; a misconfiguration, not a
	// hostile-peer condition.
	ErrFramingOverflow = errors.New("relaynet: packet payload exceeds hard cap")

	// ErrDecodeError: malformed inbound bytes.
	ErrDecodeError = errors.New("relaynet: malformed frame")

	// ErrOutOfWindow: incoming seq not in the valid receive window.
	ErrOutOfWindow = errors.New("relaynet: sequence outside receive window")

	// ErrDuplicateSeq: already-buffered or already-delivered sequence.
	ErrDuplicateSeq = errors.New("relaynet: duplicate sequence")
)

// Wrap attaches msg as context to err while preserving errors.Is matching
// against the sentinels above.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}
