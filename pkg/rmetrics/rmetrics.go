// Package rmetrics exposes the protocol's suppressed-error and loss
// counters (spec §7/§8) as Prometheus counters, the way runZeroInc-sockstats
// and katzenpost expose their own per-connection protocol counters, rather
// than as opaque in-memory uint64s nobody outside the process can see.
package rmetrics

import "github.com/prometheus/client_golang/prometheus"

// Role distinguishes which endpoint role a counter increment belongs to.
type Role string

const (
	RoleSmall      Role = "small"
	RoleMid        Role = "mid"
	RoleBig        Role = "big"
	RoleUnreliable Role = "unreliable"
)

var (
	droppedFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relaynet",
		Name:      "dropped_frames_total",
		Help:      "Inbound frames dropped by reason, never torn down a connection.",
	}, []string{"role", "reason"})

	resends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relaynet",
		Name:      "packet_resends_total",
		Help:      "Packets retransmitted by the reliable endpoint.",
	}, []string{"role"})

	lostUnreliable = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relaynet",
		Name:      "unreliable_lost_total",
		Help:      "Sequence numbers skipped in the unreliable endpoint's sequence stream.",
	}, []string{"role"})
)

func init() {
	prometheus.MustRegister(droppedFrames, resends, lostUnreliable)
}

// Drop reasons, matching spec §7's counted-and-suppressed error kinds.
const (
	ReasonDecodeError  = "decode_error"
	ReasonOutOfWindow  = "out_of_window"
	ReasonDuplicateSeq = "duplicate_seq"
	ReasonFraming      = "framing_overflow"
)

// IncDropped increments the dropped-frame counter for role/reason.
func IncDropped(role Role, reason string) {
	droppedFrames.WithLabelValues(string(role), reason).Inc()
}

// IncResend increments the resend counter for role.
func IncResend(role Role) {
	resends.WithLabelValues(string(role)).Inc()
}

// IncLost adds n to the unreliable loss counter for role.
func IncLost(role Role, n uint64) {
	lostUnreliable.WithLabelValues(string(role)).Add(float64(n))
}
