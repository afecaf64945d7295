// Package reliable implements the selective-repeat ARQ endpoint: ordered,
// duplicate-free, loss-recovering delivery of messages over an unordered,
// lossy transport, built the way ventosilenzioso-go-raknet's Session builds
// its ACK/NACK machinery in source/protocol/raknet.go, but generalized from
// that file's fixed SA-MP wire format to the bit-packed header and window
// arithmetic this system specifies.
package reliable

import (
	"sync"
	"time"

	"relaynet/pkg/header"
	"relaynet/pkg/queue"
	"relaynet/pkg/rerrors"
	"relaynet/pkg/rlog"
	"relaynet/pkg/rmetrics"
	"relaynet/pkg/seqnum"
	"relaynet/pkg/wire"
)

// TransmitFunc hands a fully-encoded frame (primary header plus optional
// payload) to the collaborator responsible for actually putting bytes on
// the wire. payload is nil when the frame carries no packet.
type TransmitFunc func(h uint32, payload []byte)

// ReceiveFunc is invoked whenever newly in-order messages have been pushed
// onto the endpoint's receive queue. The callback may drain q with Pop, or
// leave messages for a later drain; it must not block. It is called without
// the endpoint's lock held.
type ReceiveFunc func(q *queue.Queue[wire.Message])

// AckFunc is invoked once per outbound packet, the moment it is acked
// (cumulatively or selectively), naming the seq that was acknowledged.
type AckFunc func(seq uint8)

// SecondHeaderGetter lets a collaborator (the dispatcher) piggyback another
// endpoint's header onto this one's next outbound frame. It returns
// ok=false when there is nothing to piggyback this tick.
type SecondHeaderGetter func() (secondary uint32, ok bool)

// SecondHeaderCallback delivers a piggybacked secondary header recovered
// from an inbound frame to whichever endpoint it actually belongs to.
type SecondHeaderCallback func(secondary uint32)

type outSlot struct {
	occupied       bool
	seq            uint8
	messages       []wire.Message
	sentTime       time.Time
	resendDeadline time.Time // zero value is the "NAK-accelerated, eligible now" sentinel
}

type inSlot struct {
	occupied bool
	seq      uint8
	messages []wire.Message
}

// Endpoint is one reliable, ordered, selective-repeat channel. It is safe
// for concurrent use; Send may be called from any goroutine while Tick and
// OnReceiveFrame are driven from the dispatcher's own update loop.
type Endpoint struct {
	mu sync.Mutex

	opts    Options
	seqBits uint
	modulus uint8
	window  uint8
	role    rmetrics.Role

	codec wire.PacketCodec
	log   *rlog.Logger

	ackExpected    uint8
	nextToSend     uint8
	outBuffer      []outSlot
	packetExpected uint8
	inTooFar       uint8
	inBuffer       []inSlot

	rtt time.Duration

	sendQueue    *queue.Queue[wire.Message]
	receiveQueue *queue.Queue[wire.Message]

	lastFrameSentAt    time.Time
	transmissionLocked bool
	destroyed          bool

	resendDelay time.Duration
	ackTimeout  time.Duration

	transmit      TransmitFunc
	receive       ReceiveFunc
	ack           AckFunc
	secondGet     SecondHeaderGetter
	secondDeliver SecondHeaderCallback
}

// New constructs an Endpoint in the "created" lifecycle state: it accepts
// Send calls and buffers them, but emits nothing until UnlockTransmission
// is called (normally by the dispatcher, once the handshake literal has
// been observed for this peer).
func New(opts Options, codec wire.PacketCodec, log *rlog.Logger, role rmetrics.Role) *Endpoint {
	if opts.SeqBits == 0 || opts.SeqBits > 4 {
		panic("reliable: SeqBits must be in [1,4]")
	}
	window := uint8(seqnum.MaxWindow(opts.SeqBits))
	modulus := uint8(seqnum.Modulus(opts.SeqBits))
	return &Endpoint{
		opts:               opts,
		seqBits:            opts.SeqBits,
		modulus:            modulus,
		window:             window,
		role:               role,
		codec:              codec,
		log:                log,
		outBuffer:          make([]outSlot, window),
		inBuffer:           make([]inSlot, window),
		sendQueue:          queue.New[wire.Message](),
		receiveQueue:       queue.New[wire.Message](),
		transmissionLocked: true,
		resendDelay:        time.Duration(float64(opts.UpdateInterval) * opts.PacketResendDelayFactor),
		ackTimeout:         time.Duration(float64(opts.UpdateInterval) * opts.AckTimeoutFactor),
	}
}

// SetTransmitCallback wires the function invoked to emit a frame.
func (e *Endpoint) SetTransmitCallback(fn TransmitFunc) { e.transmit = fn }

// SetReceiveCallback wires the function invoked when messages arrive.
func (e *Endpoint) SetReceiveCallback(fn ReceiveFunc) { e.receive = fn }

// SetAckCallback wires the function invoked when an outbound packet is acked.
func (e *Endpoint) SetAckCallback(fn AckFunc) { e.ack = fn }

// SetSecondHeaderGetter wires piggyback sourcing for outbound frames.
func (e *Endpoint) SetSecondHeaderGetter(fn SecondHeaderGetter) { e.secondGet = fn }

// SetSecondHeaderCallback wires piggyback delivery for inbound frames.
func (e *Endpoint) SetSecondHeaderCallback(fn SecondHeaderCallback) { e.secondDeliver = fn }

// UnlockTransmission transitions the endpoint into the transmitting state:
// subsequent Tick calls build and emit frames from the queued backlog.
func (e *Endpoint) UnlockTransmission() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transmissionLocked = false
}

// Destroy tears the endpoint down: queued messages are discarded and
// further Tick/OnReceiveFrame calls are no-ops.
func (e *Endpoint) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.sendQueue.Close()
	e.receiveQueue.Close()
}

// RTT returns the current smoothed round-trip estimate.
func (e *Endpoint) RTT() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rtt
}

// MaxMessageSize returns the configured per-message size cap, used by the
// dispatcher's size-based outbound routing.
func (e *Endpoint) MaxMessageSize() int { return e.opts.MaxMessageSize }

// SendQueueDepth returns the current number of messages queued but not
// yet batched into a packet.
func (e *Endpoint) SendQueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sendQueue.Len()
}

// PendingAckHeader returns the endpoint's current ack/sack header without
// marking a frame as sent, so its own ack-timeout and resend timers are
// unaffected. Used by the dispatcher to piggyback this endpoint's
// acknowledgement onto another endpoint's frame (spec's sole mechanism
// for a reliable endpoint to advance without ever transmitting a primary
// frame of its own).
func (e *Endpoint) PendingAckHeader() (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.transmissionLocked {
		return 0, false
	}
	ack := e.move(e.packetExpected, -1)
	var sack uint8
	for i := uint8(0); i < 8; i++ {
		s := e.move(ack, 1+int32(i))
		if !e.between(e.packetExpected, s, e.inTooFar) {
			continue
		}
		if e.inBuffer[s%e.window].occupied && e.inBuffer[s%e.window].seq == s {
			sack |= 1 << i
		}
	}
	return header.Encode(ack, sack, 0, false), true
}

// Send enqueues msg for eventual transmission and returns the resulting
// send-queue depth. It never blocks: a full window only delays the next
// Tick's pickup, it does not block the caller.
func (e *Endpoint) Send(msg wire.Message) (int, error) {
	if msg == nil {
		return 0, rerrors.ErrNilArgument
	}
	if len(msg) > e.opts.MaxMessageSize {
		return 0, rerrors.ErrSubmitTooLarge
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return 0, nil
	}
	e.sendQueue.Push(msg)
	return e.sendQueue.Len(), nil
}

func (e *Endpoint) move(s uint8, delta int32) uint8 {
	return uint8(seqnum.Move(uint32(s), delta, e.seqBits))
}

func (e *Endpoint) between(a, b, c uint8) bool {
	return seqnum.Between(uint32(a), uint32(b), uint32(c), e.seqBits)
}

// outBuffered reports how many send-window slots currently hold an
// unacked packet.
func (e *Endpoint) outBuffered() uint8 {
	return uint8((int(e.nextToSend) - int(e.ackExpected) + int(e.modulus)) % int(e.modulus))
}

// Tick drives one cycle of the endpoint's state machine: pick at most one
// packet to (re)send, build the piggybacked ack/sack header, and emit a
// frame if there is anything to say. now is the caller's clock sample,
// threaded through rather than read from time.Now so ticks are testable.
func (e *Endpoint) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.transmissionLocked {
		return
	}

	// Step 1: pick a resend candidate — earliest resend_deadline in the
	// send window, ties broken by lowest (oldest) seq. A zero-value
	// resendDeadline is the NAK-accelerated sentinel and always sorts
	// earliest.
	var (
		resendIdx   uint8
		resendSeq   uint8
		resendAt    time.Time
		resendFound bool
	)
	for s := e.ackExpected; s != e.nextToSend; s = e.move(s, 1) {
		idx := s % e.window
		slot := &e.outBuffer[idx]
		if !slot.occupied || slot.resendDeadline.After(now) {
			continue
		}
		if !resendFound || slot.resendDeadline.Before(resendAt) {
			resendFound = true
			resendIdx, resendSeq, resendAt = idx, s, slot.resendDeadline
		}
	}

	var (
		chosenSeq  uint8
		chosenMsgs []wire.Message
		haveChosen bool
	)

	if resendFound {
		slot := &e.outBuffer[resendIdx]
		chosenSeq, chosenMsgs, haveChosen = resendSeq, slot.messages, true
		slot.resendDeadline = now.Add(e.resendDelay)
		rmetrics.IncResend(e.role)
	} else if e.outBuffered() < e.window {
		// Step 2: no resend owed — try to build a new packet from the
		// send queue, batching up to 15 messages (keeps CBOR's compact
		// array-header encoding to one byte) while staying under
		// MaxPacketSize.
		var msgs []wire.Message
		var cumulative int
		for len(msgs) < 15 {
			m, ok := e.sendQueue.Peek()
			if !ok {
				break
			}
			if len(msgs) > 0 && cumulative+m.Size() >= e.opts.MaxPacketSize {
				break
			}
			e.sendQueue.Pop()
			msgs = append(msgs, m)
			cumulative += m.Size()
		}
		if len(msgs) > 0 {
			seq := e.nextToSend
			idx := seq % e.window
			e.outBuffer[idx] = outSlot{
				occupied:       true,
				seq:            seq,
				messages:       msgs,
				sentTime:       now,
				resendDeadline: now.Add(e.resendDelay),
			}
			e.nextToSend = e.move(e.nextToSend, 1)
			chosenSeq, chosenMsgs, haveChosen = seq, msgs, true
		}
	}

	var payload []byte
	if haveChosen {
		encoded, err := e.codec.EncodePacket(chosenMsgs)
		if err != nil {
			e.log.Error("packet encode failed", "role", e.role, "err", err)
			rmetrics.IncDropped(e.role, rmetrics.ReasonFraming)
			haveChosen = false
		} else if len(encoded) > e.opts.HardPayloadCap {
			e.log.Error("packet exceeds hard payload cap, dropping this frame's packet",
				"role", e.role, "size", len(encoded), "cap", e.opts.HardPayloadCap)
			rmetrics.IncDropped(e.role, rmetrics.ReasonFraming)
			haveChosen = false
		} else {
			payload = encoded
		}
	}

	// Step 3: optional piggyback of another endpoint's header.
	var secondary uint32
	var hasSecondary bool
	if e.secondGet != nil {
		secondary, hasSecondary = e.secondGet()
	}

	ackTimedOut := now.Sub(e.lastFrameSentAt) >= e.ackTimeout
	if e.transmit == nil || (!haveChosen && !hasSecondary && !ackTimedOut) {
		return
	}

	ack := e.move(e.packetExpected, -1)
	var sack uint8
	for i := uint8(0); i < 8; i++ {
		s := e.move(ack, 1+int32(i))
		if !e.between(e.packetExpected, s, e.inTooFar) {
			continue
		}
		if e.inBuffer[s%e.window].occupied && e.inBuffer[s%e.window].seq == s {
			sack |= 1 << i
		}
	}

	hdr := header.Encode(ack, sack, chosenSeq, haveChosen)
	if hasSecondary {
		hdr = header.Merge(hdr, secondary)
	}

	e.transmit(hdr, payload)
	e.lastFrameSentAt = now
}

// OnReceiveFrame processes one inbound frame: primary header (and an
// optional piggybacked secondary header), plus an optional packet payload
// when HasSeq is set. now is the caller's clock sample.
func (e *Endpoint) OnReceiveFrame(h uint32, payload []byte, now time.Time) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}

	primary, secondary, hasSecondary := header.Split(h)
	if hasSecondary && e.secondDeliver != nil {
		e.secondDeliver(secondary)
	}
	d := header.Decode(primary)

	// Cumulative ack: every packet up to and including d.Ack that is still
	// outstanding is now acknowledged. Guarded the same way the selective
	// loop below is: a stale d.Ack (behind ackExpected-1, from a replayed or
	// reordered frame) must leave ackExpected untouched rather than walking
	// it all the way to nextToSend.
	target := e.move(d.Ack, 1)
	for e.ackExpected != target && e.between(e.ackExpected, d.Ack, e.nextToSend) {
		idx := e.ackExpected % e.window
		slot := &e.outBuffer[idx]
		if slot.occupied {
			e.sampleRTT(now.Sub(slot.sentTime))
			if e.ack != nil {
				e.ack(slot.seq)
			}
			*slot = outSlot{}
		}
		e.ackExpected = e.move(e.ackExpected, 1)
	}

	// Selective ack / NAK-acceleration.
	for i := uint8(0); i < 8; i++ {
		s := e.move(d.Ack, 1+int32(i))
		if !e.between(e.ackExpected, s, e.nextToSend) {
			continue
		}
		idx := s % e.window
		bitSet := (d.Sack>>i)&1 == 1
		if bitSet {
			slot := &e.outBuffer[idx]
			if slot.occupied && slot.seq == s {
				e.sampleRTT(now.Sub(slot.sentTime))
				if e.ack != nil {
					e.ack(slot.seq)
				}
				*slot = outSlot{}
			}
			continue
		}
		if s != e.ackExpected {
			continue
		}
		higherSet := false
		for j := i + 1; j < 8; j++ {
			if (d.Sack>>j)&1 == 1 {
				higherSet = true
				break
			}
		}
		if higherSet && e.outBuffer[idx].occupied {
			e.outBuffer[idx].resendDeadline = time.Time{}
		}
	}

	if d.HasSeq {
		e.handleInboundPacket(d.Seq, payload)
	}

	receive, q := e.receive, e.receiveQueue
	deliver := q.Len() > 0 && receive != nil
	e.mu.Unlock()

	// The receive callback runs without e.mu held, so it may call back into
	// this endpoint (Send, UnlockTransmission, SendQueueDepth).
	if deliver {
		receive(q)
	}
}

func (e *Endpoint) handleInboundPacket(seq uint8, payload []byte) {
	idx := seq % e.window
	switch {
	case e.between(e.packetExpected, seq, e.inTooFar):
		if e.inBuffer[idx].occupied {
			rmetrics.IncDropped(e.role, rmetrics.ReasonDuplicateSeq)
			break
		}
		msgs, err := e.codec.DecodePacket(payload)
		if err != nil {
			e.log.Warn("dropping malformed packet", "role", e.role, "seq", seq, "err", err)
			rmetrics.IncDropped(e.role, rmetrics.ReasonDecodeError)
			break
		}
		e.inBuffer[idx] = inSlot{occupied: true, seq: seq, messages: msgs}
	case e.between(e.move(e.packetExpected, -int32(e.window)), seq, e.packetExpected):
		rmetrics.IncDropped(e.role, rmetrics.ReasonDuplicateSeq)
	default:
		rmetrics.IncDropped(e.role, rmetrics.ReasonOutOfWindow)
	}

	for {
		idx := e.packetExpected % e.window
		slot := &e.inBuffer[idx]
		if !slot.occupied || slot.seq != e.packetExpected {
			break
		}
		for _, m := range slot.messages {
			e.receiveQueue.Push(m)
		}
		*slot = inSlot{}
		e.packetExpected = e.move(e.packetExpected, 1)
		e.inTooFar = e.move(e.inTooFar, 1)
	}
}

// sampleRTT folds one round-trip sample into the smoothed estimate using
// an EMA with a small dead-band so single-millisecond jitter doesn't cause
// constant tiny adjustments to the resend timer.
func (e *Endpoint) sampleRTT(sample time.Duration) {
	if e.rtt == 0 {
		e.rtt = sample
		return
	}
	diff := sample - e.rtt
	abs := diff
	if abs < 0 {
		abs = -abs
	}
	if abs < time.Millisecond {
		return
	}
	alpha := 2.0 / (float64(e.window) + 1)
	e.rtt += time.Duration(alpha * float64(diff))
}
