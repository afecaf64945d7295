package header

import "testing"

func TestExtractReplaceRoundTrip(t *testing.T) {
	var x uint32 = 0xA5A5A5A5
	original := x
	got := ReplaceBits(x, 4, 4, 0xF)
	if ExtractBits(got, 4, 4) != 0xF {
		t.Fatalf("field not set: %08X", got)
	}
	// bits outside [4,8) unchanged
	cleared := ReplaceBits(got, 4, 4, 0)
	if cleared != ReplaceBits(original, 4, 4, 0) {
		t.Errorf("other bits changed: got %08X want %08X", cleared, ReplaceBits(original, 4, 4, 0))
	}
}

func TestEncodeDecodeNoSeq(t *testing.T) {
	h := Encode(5, 0b10110010, 0, false)
	d := Decode(h)
	if d.Ack != 5 || d.Sack != 0b10110010 || d.HasSeq {
		t.Errorf("decode mismatch: %+v", d)
	}
}

func TestEncodeDecodeWithSeq(t *testing.T) {
	h := Encode(9, 0xFF, 3, true)
	d := Decode(h)
	if d.Ack != 9 || d.Sack != 0xFF || !d.HasSeq || d.Seq != 3 {
		t.Errorf("decode mismatch: %+v", d)
	}
}

func TestMergeSplitRoundTrip(t *testing.T) {
	primary := Encode(2, 0b00001111, 7, true)
	secondary := Encode(4, 0b11000011, 0, false)

	merged := Merge(primary, secondary)
	gotPrimary, gotSecondary, hasSecond := Split(merged)

	if !hasSecond {
		t.Fatal("expected SECOND set")
	}
	if gotPrimary != primary {
		t.Errorf("primary round-trip: got %08X want %08X", gotPrimary, primary)
	}
	if gotSecondary != secondary {
		t.Errorf("secondary round-trip: got %08X want %08X", gotSecondary, secondary)
	}

	// Merge(Split(h).primary, Split(h).secondary) == h when SECOND was set.
	reMerged := Merge(gotPrimary, gotSecondary)
	if reMerged != merged {
		t.Errorf("merge(split(h)) != h: got %08X want %08X", reMerged, merged)
	}
}

func TestSplitNoSecondary(t *testing.T) {
	h := Encode(1, 0, 0, false)
	primary, secondary, hasSecond := Split(h)
	if hasSecond {
		t.Fatal("expected no secondary header")
	}
	if secondary != 0 {
		t.Errorf("secondary should be zero value, got %08X", secondary)
	}
	if primary != h {
		t.Errorf("primary should be unchanged: got %08X want %08X", primary, h)
	}
}

func TestPackUnpackFrameRoundTrip(t *testing.T) {
	h := Encode(3, 0xAA, 5, true)
	payload := []byte("hello frame")

	frame := PackFrame(h, payload)
	gotH, gotPayload, ok := UnpackFrame(frame)
	if !ok {
		t.Fatal("UnpackFrame reported not ok for a well-formed frame")
	}
	if gotH != h {
		t.Errorf("header round-trip: got %08X want %08X", gotH, h)
	}
	if string(gotPayload) != string(payload) {
		t.Errorf("payload round-trip: got %q want %q", gotPayload, payload)
	}
}

func TestPackUnpackFrameNoPayload(t *testing.T) {
	h := Encode(1, 0, 0, false)
	frame := PackFrame(h, nil)
	gotH, gotPayload, ok := UnpackFrame(frame)
	if !ok || gotH != h || len(gotPayload) != 0 {
		t.Fatalf("round-trip with no payload failed: h=%08X payload=%v ok=%v", gotH, gotPayload, ok)
	}
}

func TestUnpackFrameTooShort(t *testing.T) {
	if _, _, ok := UnpackFrame([]byte{1, 2, 3}); ok {
		t.Fatal("UnpackFrame must reject a frame shorter than the header")
	}
}

func TestSingleBitFieldIsolation(t *testing.T) {
	for i := uint(0); i < 32; i++ {
		x := ReplaceBits(0, i, 1, 1)
		for j := uint(0); j < 32; j++ {
			got := ExtractBits(x, j, 1)
			want := uint32(0)
			if j == i {
				want = 1
			}
			if got != want {
				t.Fatalf("bit %d set, extracting bit %d: got %d want %d", i, j, got, want)
			}
		}
	}
}
