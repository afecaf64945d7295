package relay

import "relaynet/pkg/rerrors"

// The three user-facing error kinds a submitter can see, re-exported under
// the façade's own names. dispatch and protocol/* report the richer,
// protocol-internal kinds (FramingOverflow, DecodeError, OutOfWindow,
// DuplicateSeq) only as counters; they never reach this boundary.
var (
	// ErrTooLarge is returned when a submitted event's serialized size
	// exceeds every endpoint's configured maximum.
	ErrTooLarge = rerrors.ErrSubmitTooLarge

	// ErrPeerNotConnected is returned when a unicast or server submission
	// names a peer with no attached dispatcher.
	ErrPeerNotConnected = rerrors.ErrPeerNotConnected

	// ErrNilArgument is returned when a façade call receives a nil
	// event name, listener, or peer.
	ErrNilArgument = rerrors.ErrNilArgument
)
