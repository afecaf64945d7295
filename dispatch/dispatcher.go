package dispatch

import (
	"time"

	"github.com/rs/xid"

	"relaynet/pkg/header"
	"relaynet/pkg/queue"
	"relaynet/pkg/rlog"
	"relaynet/pkg/rmetrics"
	"relaynet/pkg/wire"
	"relaynet/protocol/reliable"
	"relaynet/protocol/unreliable"
)

// HandshakeLiteral is the reserved 10-byte ASCII literal a peer sends as
// an ordinary application event to enable transmission on the remote
// side's matching endpoints.
const HandshakeLiteral = "<~READY!~>"

// PiggybackTarget selects which reliable endpoint's ack gets piggybacked
// onto M's outbound frames.
type PiggybackTarget int

const (
	PiggybackNone PiggybackTarget = iota
	PiggybackS
	PiggybackB
)

// Options configures a Dispatcher beyond its three reliable/one
// unreliable endpoint option sets.
type Options struct {
	// SQueueDepthThreshold: S is only chosen for an outbound event if its
	// send-queue depth is currently below this.
	SQueueDepthThreshold int
	Piggyback            PiggybackTarget
}

// DefaultOptions returns sensible defaults for Options.
func DefaultOptions() Options {
	return Options{SQueueDepthThreshold: 16, Piggyback: PiggybackB}
}

// Dispatcher owns one peer's four endpoints (S/M/B reliable, U
// unreliable), routes outbound events to the right one by size, and
// gates all reliable transmission behind the handshake literal.
type Dispatcher struct {
	ID   xid.ID
	opts Options
	log  *rlog.Logger

	S *reliable.Endpoint
	M *reliable.Endpoint
	B *reliable.Endpoint
	U *unreliable.Endpoint

	carrierS, carrierM, carrierB, carrierU Carrier

	blockedFunc         func() bool
	handshakeSeen       bool
	onMessage           func(msg wire.Message)
	onUnreliableMessage func(msg wire.Message)
}

// New constructs a Dispatcher for one peer. All four endpoints start in
// their created (non-transmitting, for the reliable three) state;
// SetCarriers must be called before Tick does anything useful.
func New(id xid.ID, sOpts, mOpts, bOpts reliable.Options, uOpts unreliable.Options, codec wire.PacketCodec, log *rlog.Logger, opts Options) *Dispatcher {
	d := &Dispatcher{
		ID:   id,
		opts: opts,
		log:  log,
		S:    reliable.New(sOpts, codec, log.WithPrefix("S"), rmetrics.RoleSmall),
		M:    reliable.New(mOpts, codec, log.WithPrefix("M"), rmetrics.RoleMid),
		B:    reliable.New(bOpts, codec, log.WithPrefix("B"), rmetrics.RoleBig),
		U:    unreliable.New(uOpts, codec, log.WithPrefix("U"), rmetrics.RoleUnreliable, time.Now),
	}
	d.wireHandshakeDetection()
	d.wirePiggyback()
	return d
}

// SetBlockedFunc wires the "peer is in a blocking modal state" hook
// consulted by the S-selection rule. A nil func (the default) means
// never blocked.
func (d *Dispatcher) SetBlockedFunc(fn func() bool) { d.blockedFunc = fn }

// SetMessageHandler wires the callback invoked for every in-order
// reliable message delivered to this peer, across S/M/B, excluding the
// handshake literal itself (which the dispatcher swallows).
func (d *Dispatcher) SetMessageHandler(fn func(msg wire.Message)) { d.onMessage = fn }

// SetUnreliableMessageHandler wires the callback invoked for every
// message delivered over U.
func (d *Dispatcher) SetUnreliableMessageHandler(fn func(msg wire.Message)) {
	d.onUnreliableMessage = fn
}

// SetCarriers wires each endpoint's transmit callback to the given
// Carrier and registers the dispatcher's own decode/route handler on
// each Carrier's inbound path.
func (d *Dispatcher) SetCarriers(s, m, b, u Carrier) {
	d.carrierS, d.carrierM, d.carrierB, d.carrierU = s, m, b, u

	d.S.SetTransmitCallback(func(h uint32, payload []byte) { d.send(s, h, payload) })
	d.M.SetTransmitCallback(func(h uint32, payload []byte) { d.send(m, h, payload) })
	d.B.SetTransmitCallback(func(h uint32, payload []byte) { d.send(b, h, payload) })
	d.U.SetTransmitCallback(func(h uint32, payload []byte) { d.send(u, h, payload) })

	s.SetReceiveHandler(func(frame []byte) { d.onFrame(d.S, frame) })
	m.SetReceiveHandler(func(frame []byte) { d.onFrame(d.M, frame) })
	b.SetReceiveHandler(func(frame []byte) { d.onFrame(d.B, frame) })
	u.SetReceiveHandler(func(frame []byte) { d.onUnreliableFrame(frame) })
}

func (d *Dispatcher) send(c Carrier, h uint32, payload []byte) {
	if err := c.Send(header.PackFrame(h, payload)); err != nil {
		d.log.Warn("carrier send failed", "peer", d.ID, "err", err)
	}
}

func (d *Dispatcher) onFrame(ep *reliable.Endpoint, frame []byte) {
	h, payload, ok := header.UnpackFrame(frame)
	if !ok {
		d.log.Warn("dropping undersized frame", "peer", d.ID)
		return
	}
	ep.OnReceiveFrame(h, payload, time.Now())
}

func (d *Dispatcher) onUnreliableFrame(frame []byte) {
	h, payload, ok := header.UnpackFrame(frame)
	if !ok {
		d.log.Warn("dropping undersized unreliable frame", "peer", d.ID)
		return
	}
	d.U.OnReceiveFrame(h, payload)
}

// wireHandshakeDetection hooks each reliable endpoint's receive callback
// to intercept HandshakeLiteral and unlock S/M/B on its first sighting,
// forwarding every other delivered message to onMessage.
func (d *Dispatcher) wireHandshakeDetection() {
	drain := func(q interface{ Pop() (wire.Message, bool) }) {
		for {
			m, ok := q.Pop()
			if !ok {
				return
			}
			if string(m) == HandshakeLiteral {
				if !d.handshakeSeen {
					d.handshakeSeen = true
					d.S.UnlockTransmission()
					d.M.UnlockTransmission()
					d.B.UnlockTransmission()
					d.log.Info("handshake received, transmission unlocked", "peer", d.ID)
				}
				continue
			}
			if d.onMessage != nil {
				d.onMessage(m)
			}
		}
	}
	d.S.SetReceiveCallback(func(q *queue.Queue[wire.Message]) { drain(q) })
	d.M.SetReceiveCallback(func(q *queue.Queue[wire.Message]) { drain(q) })
	d.B.SetReceiveCallback(func(q *queue.Queue[wire.Message]) { drain(q) })
	d.U.SetReceiveCallback(func(q *queue.Queue[wire.Message]) {
		if d.onUnreliableMessage == nil {
			return
		}
		for {
			m, ok := q.Pop()
			if !ok {
				return
			}
			d.onUnreliableMessage(m)
		}
	})
}

// wirePiggyback connects M's secondary-header slots to whichever of S/B
// is configured as the piggyback target.
func (d *Dispatcher) wirePiggyback() {
	var target *reliable.Endpoint
	switch d.opts.Piggyback {
	case PiggybackS:
		target = d.S
	case PiggybackB:
		target = d.B
	default:
		return
	}
	d.M.SetSecondHeaderGetter(target.PendingAckHeader)
	d.M.SetSecondHeaderCallback(func(secondary uint32) {
		target.OnReceiveFrame(secondary, nil, time.Now())
	})
}

// Tick drives every endpoint's state machine for one cycle.
func (d *Dispatcher) Tick(now time.Time) {
	d.S.Tick(now)
	d.M.Tick(now)
	d.B.Tick(now)
	d.U.Tick()
}

// SendReliable routes msg to S, M, or B by the spec's size-based rule:
// S if it fits, the peer isn't blocked, and S's queue isn't backed up;
// otherwise M if it fits; otherwise B.
func (d *Dispatcher) SendReliable(msg wire.Message) (int, error) {
	size := msg.Size()
	blocked := d.blockedFunc != nil && d.blockedFunc()
	if size <= d.S.MaxMessageSize() && !blocked && d.S.SendQueueDepth() < d.opts.SQueueDepthThreshold {
		return d.S.Send(msg)
	}
	if size <= d.M.MaxMessageSize() {
		return d.M.Send(msg)
	}
	return d.B.Send(msg)
}

// SendUnreliable routes msg to U unconditionally.
func (d *Dispatcher) SendUnreliable(msg wire.Message) (int, error) {
	return d.U.Send(msg)
}

// Destroy tears down all four endpoints.
func (d *Dispatcher) Destroy() {
	d.S.Destroy()
	d.M.Destroy()
	d.B.Destroy()
	d.U.Destroy()
}
