package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceToTickRounding(t *testing.T) {
	tests := []struct {
		price string
		want  Tick
	}{
		{"7.30", 730},
		{"2.7", 270},
		{"0.5", 50},
		{"9.50", 950},
		{"7.305", 731}, // half away from zero
		{"7.3049", 730},
		{"10", 1000},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			if got := PriceToTick(decimal.RequireFromString(tt.price)); got != tt.want {
				t.Fatalf("PriceToTick(%s) = %d, want %d", tt.price, got, tt.want)
			}
		})
	}
}

func TestTickRoundTrip(t *testing.T) {
	for tick := Tick(50); tick <= 950; tick++ {
		p := TickToPrice(tick)
		if got := PriceToTick(p); got != tick {
			t.Fatalf("PriceToTick(TickToPrice(%d)) = %d", tick, got)
		}
		// re-parse the two-digit rendering to cover the decimal -> tick -> decimal direction
		parsed := decimal.RequireFromString(p.StringFixed(2))
		if back := TickToPrice(PriceToTick(parsed)); !back.Equal(parsed) {
			t.Fatalf("round trip of %s gave %s", parsed, back)
		}
	}
}

func TestComplement(t *testing.T) {
	if got := PriceToTick(decimal.RequireFromString("2.70")).Complement(); got != 730 {
		t.Fatalf("complement of 2.70 = %d, want 730", got)
	}
	if got := Tick(730).String(); got != "7.30" {
		t.Fatalf("Tick(730).String() = %q", got)
	}
}

func TestAdmissible(t *testing.T) {
	tests := []struct {
		price string
		want  bool
	}{
		{"0.49", false},
		{"0.40", false},
		{"0.50", true},
		{"5", true},
		{"9.50", true},
		{"9.51", false},
		{"-1", false},
	}
	for _, tt := range tests {
		if got := Admissible(decimal.RequireFromString(tt.price)); got != tt.want {
			t.Errorf("Admissible(%s) = %v, want %v", tt.price, got, tt.want)
		}
	}
}
