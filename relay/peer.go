package relay

import "github.com/google/uuid"

// PeerID names one connected peer. Generated client-side on connect and
// carried by the host's join notification to the server, exactly like
// ventosilenzioso-go-raknet's per-session identifier, but a UUID instead
// of that repo's reused-after-disconnect uint16 player index, since
// relay's peer registry is a map keyed for the lifetime of a process
// rather than a fixed player slot array.
type PeerID uuid.UUID

// NewPeerID generates a fresh, process-unique peer identifier.
func NewPeerID() PeerID { return PeerID(uuid.New()) }

func (p PeerID) String() string { return uuid.UUID(p).String() }
