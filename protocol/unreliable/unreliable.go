// Package unreliable implements the lossy sibling of the reliable ARQ
// endpoint: a bare sequence-numbered, time-stamped datagram stream with
// receive-side loss counting and no retransmission, built in the same
// shape as protocol/reliable but stripped of its windows and timeout
// tables, the way ventosilenzioso-go-raknet treats its unreliable SA-MP
// packet path as a thinner sibling of the ack-tracked one.
package unreliable

import (
	"sync"
	"time"

	"relaynet/pkg/queue"
	"relaynet/pkg/rerrors"
	"relaynet/pkg/rlog"
	"relaynet/pkg/rmetrics"
	"relaynet/pkg/wire"
)

// Header is the decoded unreliable frame header: a sequence byte plus a
// millisecond timestamp mod 2^16, packed byte 0 = seq, bytes 2-3 =
// timestamp (byte 1 reserved), to keep the same uint32-header shape the
// reliable endpoint uses so a dispatcher can treat both uniformly.
type Header struct {
	Seq         uint8
	TimestampMS uint16
}

// EncodeHeader packs seq and a millisecond timestamp into a frame header.
func EncodeHeader(seq uint8, timestampMS uint16) uint32 {
	return uint32(seq) | uint32(timestampMS)<<16
}

// DecodeHeader unpacks a frame header.
func DecodeHeader(h uint32) Header {
	return Header{Seq: uint8(h), TimestampMS: uint16(h >> 16)}
}

// TransmitFunc hands an encoded frame to the collaborator transport.
type TransmitFunc func(h uint32, payload []byte)

// ReceiveFunc is invoked whenever new messages have been pushed onto the
// receive queue.
type ReceiveFunc func(q *queue.Queue[wire.Message])

// Endpoint is one unreliable, unordered-loss-counted channel. It is safe
// for concurrent use, for the same reason protocol/reliable.Endpoint is:
// Send may be called from an application goroutine while Tick and
// OnReceiveFrame are driven from the dispatcher's update loop.
type Endpoint struct {
	mu sync.Mutex

	destroyed bool

	opts Options
	role rmetrics.Role

	codec wire.PacketCodec
	log   *rlog.Logger

	seq int // next seq to assign, in [0, MaxSeq)

	hasReceived  bool
	expectedSeq  int
	lossCount    uint64
	sendQueue    *queue.Queue[wire.Message]
	receiveQueue *queue.Queue[wire.Message]

	transmit TransmitFunc
	receive  ReceiveFunc

	now func() time.Time
}

// New constructs an unreliable Endpoint. now supplies the clock used to
// stamp outbound frames; pass time.Now in production, a fixed function in
// tests.
func New(opts Options, codec wire.PacketCodec, log *rlog.Logger, role rmetrics.Role, now func() time.Time) *Endpoint {
	if opts.MaxSeq <= 0 || opts.MaxSeq > 256 {
		panic("unreliable: MaxSeq must be in (0,256]")
	}
	return &Endpoint{
		opts:         opts,
		role:         role,
		codec:        codec,
		log:          log,
		sendQueue:    queue.New[wire.Message](),
		receiveQueue: queue.New[wire.Message](),
		now:          now,
	}
}

// SetTransmitCallback wires the function invoked to emit a frame.
func (e *Endpoint) SetTransmitCallback(fn TransmitFunc) { e.transmit = fn }

// SetReceiveCallback wires the function invoked when messages arrive.
func (e *Endpoint) SetReceiveCallback(fn ReceiveFunc) { e.receive = fn }

// LossCount returns the cumulative number of sequence numbers skipped
// (never received) since the first received frame.
func (e *Endpoint) LossCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lossCount
}

// Destroy tears the endpoint down: queued messages are discarded and
// further Tick/OnReceiveFrame/Send calls are no-ops.
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

// Send enqueues msg for the next outbound batch. Never blocks.
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

// Tick drains any queued messages into at most one outbound batch and
// emits it; a no-op when nothing is queued (there is no ack channel to
// maintain, so unlike the reliable endpoint there is no keepalive frame).
func (e *Endpoint) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
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
	if len(msgs) == 0 {
		return
	}

	payload, err := e.codec.EncodePacket(msgs)
	if err != nil {
		e.log.Error("batch encode failed", "role", e.role, "err", err)
		rmetrics.IncDropped(e.role, rmetrics.ReasonFraming)
		return
	}

	seq := uint8(e.seq)
	e.seq = (e.seq + 1) % e.opts.MaxSeq
	ts := uint16(e.now().UnixMilli() % (1 << 16))

	if e.transmit != nil {
		e.transmit(EncodeHeader(seq, ts), payload)
	}
}

// OnReceiveFrame processes one inbound frame: counts any gap between the
// expected and observed sequence as loss, then decodes and enqueues the
// carried batch.
func (e *Endpoint) OnReceiveFrame(h uint32, payload []byte) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	hdr := DecodeHeader(h)

	if e.hasReceived {
		gap := (int(hdr.Seq) - e.expectedSeq + e.opts.MaxSeq) % e.opts.MaxSeq
		if gap > 0 {
			e.lossCount += uint64(gap)
			rmetrics.IncLost(e.role, uint64(gap))
		}
	}
	e.hasReceived = true
	e.expectedSeq = (int(hdr.Seq) + 1) % e.opts.MaxSeq

	msgs, err := e.codec.DecodePacket(payload)
	if err != nil {
		e.log.Warn("dropping malformed unreliable batch", "role", e.role, "seq", hdr.Seq, "err", err)
		rmetrics.IncDropped(e.role, rmetrics.ReasonDecodeError)
		e.mu.Unlock()
		return
	}
	for _, m := range msgs {
		e.receiveQueue.Push(m)
	}
	receive, q := e.receive, e.receiveQueue
	deliver := q.Len() > 0 && receive != nil
	e.mu.Unlock()

	// The receive callback runs without e.mu held, so it may call back into
	// this endpoint (e.g. Send).
	if deliver {
		receive(q)
	}
}
