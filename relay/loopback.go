package relay

// The Loopback* types are in-memory reference implementations of the
// three carrier contracts, paired so that one side's Broadcast/SetChannel/
// Trigger call invokes the other side's registered handler synchronously.
// They exist for tests and cmd/relayd's demo mode, standing in for a real
// game-engine binding without touching dispatch or protocol/*.

// LoopbackEventCarrier pairs with another LoopbackEventCarrier to form an
// in-memory event-style channel.
type LoopbackEventCarrier struct {
	self     PeerID
	partner  *LoopbackEventCarrier
	handlers map[string]func(peer PeerID, payload string)
}

// NewLoopbackEventCarrierPair returns two carriers wired to each other,
// one per side of a connection.
func NewLoopbackEventCarrierPair(selfA, selfB PeerID) (a, b *LoopbackEventCarrier) {
	a = &LoopbackEventCarrier{self: selfA, handlers: map[string]func(PeerID, string){}}
	b = &LoopbackEventCarrier{self: selfB, handlers: map[string]func(PeerID, string){}}
	a.partner, b.partner = b, a
	return a, b
}

func (c *LoopbackEventCarrier) Broadcast(peer PeerID, event string, payload string) error {
	if c.partner == nil {
		return nil
	}
	if h := c.partner.handlers[event]; h != nil {
		h(c.self, payload)
	}
	return nil
}

func (c *LoopbackEventCarrier) OnEvent(event string, handler func(peer PeerID, payload string)) {
	c.handlers[event] = handler
}

// LoopbackPropertyCarrier pairs with another to form an in-memory
// property-style channel: SetChannel always overwrites, matching the
// replicated-property semantics the contract promises.
type LoopbackPropertyCarrier struct {
	partner  *LoopbackPropertyCarrier
	handlers map[string]func(payload string)
}

func NewLoopbackPropertyCarrierPair() (a, b *LoopbackPropertyCarrier) {
	a = &LoopbackPropertyCarrier{handlers: map[string]func(string){}}
	b = &LoopbackPropertyCarrier{handlers: map[string]func(string){}}
	a.partner, b.partner = b, a
	return a, b
}

func (c *LoopbackPropertyCarrier) SetChannel(name string, payload string) {
	if c.partner == nil {
		return
	}
	if h := c.partner.handlers[name]; h != nil {
		h(payload)
	}
}

func (c *LoopbackPropertyCarrier) OnChannelChange(name string, handler func(payload string)) {
	c.handlers[name] = handler
}

// LoopbackAbilityCarrier pairs with another to form an in-memory
// ability-style actuator: Trigger on one side fires the other side's
// ready handler with the same fixed-size payload.
type LoopbackAbilityCarrier struct {
	partner *LoopbackAbilityCarrier
	ready   func(payload [AbilityPayloadLen]byte)
}

func NewLoopbackAbilityCarrierPair() (a, b *LoopbackAbilityCarrier) {
	a = &LoopbackAbilityCarrier{}
	b = &LoopbackAbilityCarrier{}
	a.partner, b.partner = b, a
	return a, b
}

func (c *LoopbackAbilityCarrier) Trigger(payload [AbilityPayloadLen]byte) error {
	if c.partner == nil || c.partner.ready == nil {
		return nil
	}
	c.partner.ready(payload)
	return nil
}

func (c *LoopbackAbilityCarrier) OnReady(handler func(payload [AbilityPayloadLen]byte)) {
	c.ready = handler
}
