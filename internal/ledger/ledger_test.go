package ledger

import "testing"

func TestSatAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{"plain", 2, 3, 5},
		{"zero", 0, 0, 0},
		{"ceiling", MaxUint64, 1, MaxUint64},
		{"both huge", MaxUint64, MaxUint64, MaxUint64},
	}
	for _, tt := range tests {
		if got := SatAdd(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: SatAdd(%d, %d) = %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSatSub(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{"plain", 5, 3, 2},
		{"equal", 7, 7, 0},
		{"floor", 3, 5, 0},
	}
	for _, tt := range tests {
		if got := SatSub(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: SatSub(%d, %d) = %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSatAdd32(t *testing.T) {
	if got := SatAdd32(^uint32(0)-1, 3); got != ^uint32(0) {
		t.Errorf("SatAdd32 near ceiling = %d, want max", got)
	}
	if got := SatAdd32(10, 3); got != 13 {
		t.Errorf("SatAdd32(10, 3) = %d, want 13", got)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, d uint64
		want    uint64
	}{
		{"plain", 6, 7, 2, 21},
		{"truncates", 7, 3, 2, 10},
		{"wide intermediate", MaxUint64, 1000, 1000, MaxUint64},
		{"quotient overflow", MaxUint64, 2, 1, MaxUint64},
		{"zero divisor", 1, 1, 0, MaxUint64},
		{"zero numerator", 0, 12345, 7, 0},
	}
	for _, tt := range tests {
		if got := MulDiv(tt.a, tt.b, tt.d); got != tt.want {
			t.Errorf("%s: MulDiv(%d, %d, %d) = %d, want %d", tt.name, tt.a, tt.b, tt.d, got, tt.want)
		}
	}
}

func TestCut(t *testing.T) {
	// The documented fee split: 1,000,000 gross at 500 bps fee and 2000 bps
	// final prize nets 750,000.
	gross := uint64(1_000_000)
	fee := Cut(gross, 500)
	prize := Cut(gross, 2000)
	net := SatSub(SatSub(gross, fee), prize)

	if fee != 50_000 {
		t.Errorf("fee = %d, want 50000", fee)
	}
	if prize != 200_000 {
		t.Errorf("prize = %d, want 200000", prize)
	}
	if net != 750_000 {
		t.Errorf("net = %d, want 750000", net)
	}
}
