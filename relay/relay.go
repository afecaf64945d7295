// Package relay is the public façade wrapping dispatch as a drop-in
// submission API: broadcast/connect calls in, decoded (peer, event, args)
// deliveries out. It is the sole place in this module that knows about
// peer identity, event names, and argument serialization; dispatch and
// protocol/* never see any of that, only opaque Messages and frames.
package relay

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"relaynet/dispatch"
	"relaynet/pkg/rlog"
	"relaynet/pkg/wire"
	"relaynet/protocol/reliable"
	"relaynet/protocol/unreliable"
)

// Config bundles every collaborator and option table a Relay needs at
// construction. Mirrors ventosilenzioso-go-raknet's loadConfig() in
// spirit (one struct, sane zero-ish defaults via DefaultConfig),
// generalized from that repo's flat field list to the layered
// per-endpoint option tables §4.4/§4.5 define.
type Config struct {
	Serializer  wire.Serializer
	PacketCodec wire.PacketCodec
	TextCodec   BaseNCodec

	SOptions reliable.Options
	MOptions reliable.Options
	BOptions reliable.Options
	UOptions unreliable.Options
	Dispatch dispatch.Options

	Log *rlog.Logger
}

// DefaultConfig returns a Config sized per the dispatcher's role table:
// S small and fast, M moderate, B large, plus CBOR serialization, a
// CBOR packet codec, and base32 text escaping.
func DefaultConfig() Config {
	sOpts := reliable.DefaultOptions()
	sOpts.MaxMessageSize = 24

	mOpts := reliable.DefaultOptions()
	mOpts.MaxMessageSize = 512

	bOpts := reliable.DefaultOptions()
	bOpts.MaxMessageSize = 8192
	bOpts.MaxPacketSize = 16384

	return Config{
		Serializer:  wire.CBORSerializer{},
		PacketCodec: wire.CBORPacketCodec{},
		TextCodec:   Base32Codec{},
		SOptions:    sOpts,
		MOptions:    mOpts,
		BOptions:    bOpts,
		UOptions:    unreliable.DefaultOptions(),
		Dispatch:    dispatch.DefaultOptions(),
		Log:         rlog.New(),
	}
}

type peerConn struct {
	d *dispatch.Dispatcher
}

// Relay is the explicit, once-constructed façade value the spec's design
// notes call for in place of a process-wide singleton registry: callers
// construct one at startup, attach a peer per connection, and submit
// through it for the life of the process.
type Relay struct {
	mu     sync.Mutex
	cfg    Config
	peers  map[PeerID]*peerConn
	events *trampoline
}

// New constructs a Relay. No peers are attached yet.
func New(cfg Config) *Relay {
	if cfg.Log == nil {
		cfg.Log = rlog.New()
	}
	return &Relay{
		cfg:    cfg,
		peers:  make(map[PeerID]*peerConn),
		events: newTrampoline(),
	}
}

// AttachPeer wires a new connection's four carriers into a fresh
// dispatcher and immediately unlocks its own S/M/B transmission, then
// emits the handshake literal so the remote side unlocks in turn on
// receipt. Both sides self-unlocking at attach time (rather than only on
// handshake receipt) is this module's resolution of the bootstrap
// ordering the spec's handshake wording leaves implicit: something has
// to be allowed to transmit first, and "a connection was just attached
// locally" is that trigger.
func (r *Relay) AttachPeer(id PeerID, ability AbilityCarrier, event EventCarrier, data PropertyCarrier, broadcast PropertyCarrier) error {
	if ability == nil || event == nil || data == nil || broadcast == nil {
		return ErrNilArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := dispatch.New(xid.New(), r.cfg.SOptions, r.cfg.MOptions, r.cfg.BOptions, r.cfg.UOptions,
		r.cfg.PacketCodec, r.cfg.Log.WithPrefix(id.String()), r.cfg.Dispatch)

	// Channel/event names are fixed per role, not keyed by peer id: each
	// AttachPeer call is handed a carrier pair already dedicated to this
	// one connection (a real per-peer keyed slot, or a fresh loopback
	// pair), so both sides of that one connection must agree on the same
	// name, and a role-fixed name is the simplest thing that does.
	sCarrier := &abilityCarrierAdapter{host: ability}
	mCarrier := &eventCarrierAdapter{host: event, peer: id, event: "relay:M", codec: r.cfg.TextCodec}
	bCarrier := &propertyCarrierAdapter{host: data, channel: "relay:B", codec: r.cfg.TextCodec}
	uCarrier := &propertyCarrierAdapter{host: broadcast, channel: "relay:U", codec: r.cfg.TextCodec}

	d.SetCarriers(sCarrier, mCarrier, bCarrier, uCarrier)
	d.SetMessageHandler(func(msg wire.Message) { r.deliver(id, msg) })
	d.SetUnreliableMessageHandler(func(msg wire.Message) { r.deliver(id, msg) })

	d.S.UnlockTransmission()
	d.M.UnlockTransmission()
	d.B.UnlockTransmission()

	pc := &peerConn{d: d}
	r.peers[id] = pc

	if _, err := d.SendReliable(wire.Message(dispatch.HandshakeLiteral)); err != nil {
		return err
	}
	return nil
}

// DetachPeer tears down a peer's dispatcher and releases it from the
// registry. Safe to call on an unknown id (no-op).
func (r *Relay) DetachPeer(id PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pc, ok := r.peers[id]; ok {
		pc.d.Destroy()
		delete(r.peers, id)
	}
}

// Peers returns the currently attached peer IDs.
func (r *Relay) Peers() []PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PeerID, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	return out
}

// Tick drives every attached peer's dispatcher for one cycle. Intended
// to be called by an external tick driver (cmd/relayd, or a test's
// simulated clock) at Config's update interval.
func (r *Relay) Tick(now time.Time) {
	r.mu.Lock()
	conns := make([]*peerConn, 0, len(r.peers))
	for _, pc := range r.peers {
		conns = append(conns, pc)
	}
	r.mu.Unlock()

	for _, pc := range conns {
		pc.d.Tick(now)
	}
}

func (r *Relay) encode(event string, args []any) (wire.Message, error) {
	if event == "" {
		return nil, ErrNilArgument
	}
	values := make([]any, 0, len(args)+1)
	values = append(values, event)
	values = append(values, args...)
	return r.cfg.Serializer.Marshal(values)
}

func (r *Relay) deliver(peer PeerID, msg wire.Message) {
	values, err := r.cfg.Serializer.Unmarshal(msg)
	if err != nil || len(values) == 0 {
		return
	}
	event, ok := values[0].(string)
	if !ok {
		return
	}
	// events owns its own lock and runs handlers with no lock held, so a
	// listener broadcasting a further event through the public API here
	// (the use case the trampoline exists for) cannot deadlock on r.mu.
	r.events.trigger(event, peer, values[1:])
}

func (r *Relay) lookup(peer PeerID) (*peerConn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.peers[peer]
	return pc, ok
}

// BroadcastToAll reliably submits event to every attached peer.
func (r *Relay) BroadcastToAll(event string, args ...any) (int, error) {
	msg, err := r.encode(event, args)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	conns := make([]*peerConn, 0, len(r.peers))
	for _, pc := range r.peers {
		conns = append(conns, pc)
	}
	r.mu.Unlock()

	total := 0
	for _, pc := range conns {
		n, err := pc.d.SendReliable(msg)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// BroadcastToPeer reliably submits event to one named peer.
func (r *Relay) BroadcastToPeer(peer PeerID, event string, args ...any) (int, error) {
	msg, err := r.encode(event, args)
	if err != nil {
		return 0, err
	}
	pc, ok := r.lookup(peer)
	if !ok {
		return 0, ErrPeerNotConnected
	}
	return pc.d.SendReliable(msg)
}

// UnreliableBroadcastToAll submits event over U to every attached peer.
func (r *Relay) UnreliableBroadcastToAll(event string, args ...any) (int, error) {
	msg, err := r.encode(event, args)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	conns := make([]*peerConn, 0, len(r.peers))
	for _, pc := range r.peers {
		conns = append(conns, pc)
	}
	r.mu.Unlock()

	total := 0
	for _, pc := range conns {
		n, err := pc.d.SendUnreliable(msg)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// BroadcastToServer reliably submits event to the one attached peer,
// for client-side use where a Relay connects to exactly one server
// peer. Returns ErrPeerNotConnected if zero or more than one peer is
// attached, since "the server" is otherwise ambiguous.
func (r *Relay) BroadcastToServer(event string, args ...any) (int, error) {
	msg, err := r.encode(event, args)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	var only *peerConn
	ambiguous := len(r.peers) != 1
	if !ambiguous {
		for _, pc := range r.peers {
			only = pc
		}
	}
	r.mu.Unlock()
	if ambiguous {
		return 0, ErrPeerNotConnected
	}
	return only.d.SendReliable(msg)
}

// Connect subscribes listener to event, invoked with the originating
// peer and the submitted (decoded) arguments for every delivery, across
// every attached peer.
func (r *Relay) Connect(event string, listener func(peer PeerID, args []any)) error {
	if event == "" || listener == nil {
		return ErrNilArgument
	}
	r.events.register(event, listener)
	return nil
}

// ConnectForPeer is Connect under the façade's server-side name from
// spec §6; the listener signature already names the originating peer on
// every delivery; there is no separate per-peer registration mechanism
// to distinguish.
func (r *Relay) ConnectForPeer(event string, listener func(peer PeerID, args []any)) error {
	return r.Connect(event, listener)
}
