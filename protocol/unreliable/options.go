package unreliable

import "time"

// Options are the recognized configuration options for an unreliable
// endpoint (spec §4.5).
type Options struct {
	MaxMessageSize int
	MaxPacketSize  int
	UpdateInterval time.Duration

	// MaxSeq is the modulus the sequence byte wraps at; must be in (0,256].
	MaxSeq int
}

// DefaultOptions returns the spec's default unreliable-endpoint
// configuration.
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 1024,
		MaxPacketSize:  1024,
		UpdateInterval: 50 * time.Millisecond,
		MaxSeq:         256,
	}
}
