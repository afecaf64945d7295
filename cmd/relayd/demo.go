package main

import (
	"time"

	"relaynet/pkg/rlog"
	"relaynet/relay"
)

// demoPair is a self-contained two-peer loopback deployment: no real
// carrier host, just the reference implementations in package relay
// wired to each other, for proving the full submission/delivery path
// end-to-end without a game engine behind it.
type demoPair struct {
	server *relay.Relay
	client *relay.Relay
	log    *rlog.Logger
}

func newDemoPair(log *rlog.Logger) (*demoPair, error) {
	serverID := relay.NewPeerID()
	clientID := relay.NewPeerID()

	ability1, ability2 := relay.NewLoopbackAbilityCarrierPair()
	event1, event2 := relay.NewLoopbackEventCarrierPair(serverID, clientID)
	data1, data2 := relay.NewLoopbackPropertyCarrierPair()
	broadcast1, broadcast2 := relay.NewLoopbackPropertyCarrierPair()

	serverCfg := relay.DefaultConfig()
	serverCfg.Log = log.WithPrefix("server")
	server := relay.New(serverCfg)

	clientCfg := relay.DefaultConfig()
	clientCfg.Log = log.WithPrefix("client")
	client := relay.New(clientCfg)

	if err := server.AttachPeer(clientID, ability1, event1, data1, broadcast1); err != nil {
		return nil, err
	}
	if err := client.AttachPeer(serverID, ability2, event2, data2, broadcast2); err != nil {
		return nil, err
	}

	return &demoPair{server: server, client: client, log: log}, nil
}

// run drives both sides' tick loop and periodically broadcasts a
// heartbeat event from server to client until stop fires.
func (d *demoPair) run(interval time.Duration, stop <-chan struct{}) {
	var seq uint64
	d.client.Connect("heartbeat", func(peer relay.PeerID, args []any) {
		d.log.Info("heartbeat received", "from", peer, "args", args)
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	heartbeatEvery := 20
	tick := 0

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			d.server.Tick(now)
			d.client.Tick(now)
			tick++
			if tick%heartbeatEvery == 0 {
				seq++
				if _, err := d.server.BroadcastToAll("heartbeat", seq); err != nil {
					d.log.Warn("heartbeat broadcast failed", "err", err)
				}
			}
		}
	}
}
