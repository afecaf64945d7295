// Package dispatch implements the multi-endpoint façade: per peer, up to
// four endpoints (S/M/B reliable, U unreliable) with distinct size/latency
// profiles, routed by payload size, piggybacked via the secondary header,
// and gated by the handshake literal. Grounded on
// ventosilenzioso-go-raknet's Server, which owns one Session per
// connected player and drives all of them from a single update loop
// (source/server/server.go), generalized here from one raknet Session per
// player to four endpoints per peer.
package dispatch

// Carrier is the byte-pipe abstraction an endpoint's frames travel over.
// It is intentionally far narrower than the collaborator carrier
// contracts in package relay (event/property/ability-style); relay
// adapts those richer contracts down to this one before handing a
// Carrier to the dispatcher, so dispatch never needs to know which kind
// of game-engine channel it is actually riding on.
type Carrier interface {
	// Send transports one opaque frame (see pkg/header.PackFrame).
	Send(frame []byte) error
	// SetReceiveHandler registers the function invoked for every inbound
	// frame. Called once, at wiring time.
	SetReceiveHandler(handler func(frame []byte))
}
