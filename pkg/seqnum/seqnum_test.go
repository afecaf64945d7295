package seqnum

import "testing"

func TestBetweenBasic(t *testing.T) {
	tests := []struct {
		a, b, c uint32
		want    bool
	}{
		{0, 1, 5, true},
		{0, 5, 1, false},
		{5, 5, 5, false}, // a == c
		{2, 2, 7, true},  // Between(a, a, c) true when a != c
		{15, 0, 2, true}, // wraps mod 16
		{15, 14, 2, false},
	}
	for _, tt := range tests {
		got := Between(tt.a, tt.b, tt.c, 4)
		if got != tt.want {
			t.Errorf("Between(%d,%d,%d,4) = %v, want %v", tt.a, tt.b, tt.c, got, tt.want)
		}
	}
}

func TestBetweenSelfEqualsC(t *testing.T) {
	if Between(3, 3, 3, 4) {
		t.Error("Between(a, a, a) must be false")
	}
}

func TestMoveWrapsAndNegates(t *testing.T) {
	if got := Move(15, 1, 4); got != 0 {
		t.Errorf("Move(15,1,4) = %d, want 0", got)
	}
	if got := Move(0, -1, 4); got != 15 {
		t.Errorf("Move(0,-1,4) = %d, want 15", got)
	}
	if got := Move(5, 20, 4); got != 9 {
		t.Errorf("Move(5,20,4) = %d, want 9", got)
	}
}

func TestMaxWindow(t *testing.T) {
	if MaxWindow(4) != 8 {
		t.Errorf("MaxWindow(4) = %d, want 8", MaxWindow(4))
	}
}

func TestModulus(t *testing.T) {
	if Modulus(4) != 16 {
		t.Errorf("Modulus(4) = %d, want 16", Modulus(4))
	}
}
