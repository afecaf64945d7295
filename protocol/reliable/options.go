package reliable

import "time"

// Options are the recognized configuration options for a reliable
// endpoint (spec §4.4). Unknown options passed elsewhere (e.g. at the
// façade layer) are ignored, per spec §6; this struct only carries the
// ones this package understands.
type Options struct {
	// SeqBits is the sequence number width, <= 4. Window size is
	// 2^(SeqBits-1).
	SeqBits uint

	// MaxMessageSize rejects Send of anything larger.
	MaxMessageSize int

	// MaxPacketSize caps the cumulative measured message size batched into
	// one frame's payload.
	MaxPacketSize int

	// HardPayloadCap is the absolute encoded-byte ceiling a chosen packet
	// must not exceed; breaching it is FramingOverflow (a misconfiguration,
	// since MaxPacketSize should already keep well under it).
	HardPayloadCap int

	// UpdateInterval is the nominal tick period Tick is expected to be
	// called at.
	UpdateInterval time.Duration

	// AckTimeoutFactor: an ack-only frame is emitted if no frame has been
	// sent for factor * UpdateInterval.
	AckTimeoutFactor float64

	// PacketResendDelayFactor: an unacked packet is retransmitted
	// factor * UpdateInterval after its last send.
	PacketResendDelayFactor float64
}

// DefaultOptions returns the spec's default reliable-endpoint
// configuration: SeqBits=4 (window=8).
func DefaultOptions() Options {
	return Options{
		SeqBits:                 4,
		MaxMessageSize:          1024,
		MaxPacketSize:           1024,
		HardPayloadCap:          65507,
		UpdateInterval:          50 * time.Millisecond,
		AckTimeoutFactor:        2,
		PacketResendDelayFactor: 2,
	}
}
