package relay

// AbilityPayloadLen is the fixed binary payload size of an ability-style
// carrier slot: 4 bytes of frame header plus a short data tail, sized to
// fit comfortably under S's small/fast message budget (spec's "~25 B").
const AbilityPayloadLen = 28

// EventCarrier is the event-style collaborator contract: a per-event,
// per-peer text channel with a hard per-call byte budget. Typical host:
// a RemoteEvent-style API firing (peer, text) pairs.
type EventCarrier interface {
	Broadcast(peer PeerID, event string, payload string) error
	OnEvent(event string, handler func(peer PeerID, payload string))
}

// PropertyCarrier is the property-style collaborator contract: a single
// named, network-replicated channel that always holds its last-written
// value and overwrites rather than queues.
type PropertyCarrier interface {
	SetChannel(name string, payload string)
	OnChannelChange(name string, handler func(payload string))
}

// AbilityCarrier is the ability-style collaborator contract: an actuator
// the local peer can trigger, whose remote "ready" event carries a short
// fixed-size binary payload read out on the other side.
type AbilityCarrier interface {
	Trigger(payload [AbilityPayloadLen]byte) error
	OnReady(handler func(payload [AbilityPayloadLen]byte))
}

// BaseNCodec escapes opaque wire bytes into text for carriers that only
// transport strings. The exact alphabet is the collaborator's choice;
// dispatch and protocol/* never see it, only relay's carrier adapters do.
type BaseNCodec interface {
	Encode(data []byte) string
	Decode(text string) ([]byte, error)
}
