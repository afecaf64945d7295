package unreliable

import (
	"testing"
	"time"

	"relaynet/pkg/rlog"
	"relaynet/pkg/rmetrics"
	"relaynet/pkg/wire"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestEndpoint() *Endpoint {
	return New(DefaultOptions(), wire.CBORPacketCodec{}, rlog.New(), rmetrics.RoleUnreliable, fixedClock(time.Unix(0, 0)))
}

func TestHeaderRoundTrip(t *testing.T) {
	h := EncodeHeader(200, 0xBEEF)
	got := DecodeHeader(h)
	if got.Seq != 200 {
		t.Errorf("Seq = %d, want 200", got.Seq)
	}
	if got.TimestampMS != 0xBEEF {
		t.Errorf("TimestampMS = %#x, want %#x", got.TimestampMS, 0xBEEF)
	}
}

func TestNoLossWhenContiguous(t *testing.T) {
	a := newTestEndpoint()
	b := newTestEndpoint()
	a.SetTransmitCallback(func(h uint32, payload []byte) { b.OnReceiveFrame(h, payload) })

	for i := 0; i < 5; i++ {
		if _, err := a.Send(wire.Message("m")); err != nil {
			t.Fatalf("Send: %v", err)
		}
		a.Tick()
	}

	if got := b.LossCount(); got != 0 {
		t.Errorf("LossCount() = %d, want 0", got)
	}
}

func TestGapCountsAsLoss(t *testing.T) {
	a := newTestEndpoint()
	b := newTestEndpoint()

	type frame struct {
		h       uint32
		payload []byte
	}
	var frames []frame
	a.SetTransmitCallback(func(h uint32, payload []byte) {
		frames = append(frames, frame{h, payload})
	})

	for _, s := range []string{"one", "two", "three", "four"} {
		a.Send(wire.Message(s))
		a.Tick()
	}
	if len(frames) != 4 {
		t.Fatalf("captured %d frames, want 4", len(frames))
	}

	// Deliver seq 0, then skip seq 1 and 2 (simulated loss), then deliver seq 3.
	b.OnReceiveFrame(frames[0].h, frames[0].payload)
	b.OnReceiveFrame(frames[3].h, frames[3].payload)

	if got := b.LossCount(); got != 2 {
		t.Errorf("LossCount() = %d, want 2 (two skipped seqs)", got)
	}
}

func TestSendRejectsOversizeMessage(t *testing.T) {
	e := newTestEndpoint()
	big := make([]byte, e.opts.MaxMessageSize+1)
	if _, err := e.Send(wire.Message(big)); err == nil {
		t.Fatal("Send of oversize message must return an error")
	}
}

func TestTickIsNoOpWhenQueueEmpty(t *testing.T) {
	e := newTestEndpoint()
	sent := false
	e.SetTransmitCallback(func(h uint32, payload []byte) { sent = true })
	e.Tick()
	if sent {
		t.Fatal("Tick must not emit a frame when nothing is queued")
	}
}

func TestSeqWrapsAtMaxSeq(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSeq = 4
	e := New(opts, wire.CBORPacketCodec{}, rlog.New(), rmetrics.RoleUnreliable, fixedClock(time.Unix(0, 0)))

	var seqs []uint8
	e.SetTransmitCallback(func(h uint32, payload []byte) {
		seqs = append(seqs, DecodeHeader(h).Seq)
	})
	for i := 0; i < 6; i++ {
		e.Send(wire.Message("x"))
		e.Tick()
	}
	want := []uint8{0, 1, 2, 3, 0, 1}
	if len(seqs) != len(want) {
		t.Fatalf("got %d frames, want %d", len(seqs), len(want))
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Errorf("seq %d = %d, want %d", i, seqs[i], want[i])
		}
	}
}

func TestDestroySuppressesFurtherActivity(t *testing.T) {
	e := newTestEndpoint()
	sent := false
	e.SetTransmitCallback(func(h uint32, payload []byte) { sent = true })

	e.Destroy()

	if _, err := e.Send(wire.Message("x")); err != nil {
		t.Fatalf("Send after Destroy returned err = %v, want nil", err)
	}
	e.Tick()
	if sent {
		t.Fatal("Tick after Destroy must not emit a frame")
	}

	e.OnReceiveFrame(EncodeHeader(0, 0), []byte{})
	if e.LossCount() != 0 {
		t.Fatalf("LossCount = %d, want 0 after Destroy", e.LossCount())
	}

	e.Destroy()
}
