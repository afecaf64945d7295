package relay

// eventCarrierAdapter narrows an EventCarrier, bound to one fixed peer and
// event name, down to dispatch.Carrier's opaque frame shape.
type eventCarrierAdapter struct {
	host  EventCarrier
	peer  PeerID
	event string
	codec BaseNCodec
}

func (a *eventCarrierAdapter) Send(frame []byte) error {
	return a.host.Broadcast(a.peer, a.event, a.codec.Encode(frame))
}

func (a *eventCarrierAdapter) SetReceiveHandler(handler func(frame []byte)) {
	a.host.OnEvent(a.event, func(peer PeerID, payload string) {
		if peer != a.peer {
			return
		}
		frame, err := a.codec.Decode(payload)
		if err != nil {
			return
		}
		handler(frame)
	})
}

// propertyCarrierAdapter narrows a PropertyCarrier, bound to one fixed
// channel name, down to dispatch.Carrier.
type propertyCarrierAdapter struct {
	host    PropertyCarrier
	channel string
	codec   BaseNCodec
}

func (a *propertyCarrierAdapter) Send(frame []byte) error {
	a.host.SetChannel(a.channel, a.codec.Encode(frame))
	return nil
}

func (a *propertyCarrierAdapter) SetReceiveHandler(handler func(frame []byte)) {
	a.host.OnChannelChange(a.channel, func(payload string) {
		frame, err := a.codec.Decode(payload)
		if err != nil {
			return
		}
		handler(frame)
	})
}

// abilityCarrierAdapter narrows an AbilityCarrier down to dispatch.Carrier.
// A frame longer than AbilityPayloadLen is truncated rather than rejected:
// S's max_message_size is expected to be configured so this never happens
// in practice, matching the spec's "~25 B" sizing note for this endpoint.
type abilityCarrierAdapter struct {
	host AbilityCarrier
}

func (a *abilityCarrierAdapter) Send(frame []byte) error {
	var payload [AbilityPayloadLen]byte
	copy(payload[:], frame)
	return a.host.Trigger(payload)
}

func (a *abilityCarrierAdapter) SetReceiveHandler(handler func(frame []byte)) {
	a.host.OnReady(func(payload [AbilityPayloadLen]byte) {
		handler(payload[:])
	})
}
