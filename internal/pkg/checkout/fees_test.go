package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeFees(t *testing.T) {
	tests := []struct {
		name         string
		amountReais  string
		platformBps  int64
		wantGross    int64
		wantProvider int64
		wantPlatform int64
		wantNet      int64
	}{
		{
			name:        "ten reais with default rates",
			amountReais: "10.00", platformBps: PlatformFeeRateBps,
			wantGross: 1000, wantProvider: 40, wantPlatform: 50, wantNet: 910,
		},
		{
			name:        "twenty five reais",
			amountReais: "25.00", platformBps: PlatformFeeRateBps,
			wantGross: 2500, wantProvider: 100, wantPlatform: 125, wantNet: 2275,
		},
		{
			name:        "one cent never yields a negative net",
			amountReais: "0.01", platformBps: PlatformFeeRateBps,
			wantGross: 1, wantProvider: 0, wantPlatform: 0, wantNet: 1,
		},
		{
			name:        "custom commission rate",
			amountReais: "10.00", platformBps: 1000,
			wantGross: 1000, wantProvider: 40, wantPlatform: 100, wantNet: 860,
		},
		{
			name:        "zero commission for connected accounts",
			amountReais: "10.00", platformBps: 0,
			wantGross: 1000, wantProvider: 40, wantPlatform: 0, wantNet: 960,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amountReais)
			if err != nil {
				t.Fatalf("bad amount %q: %v", tt.amountReais, err)
			}
			fees := ComputeFees(amount, tt.platformBps)
			if fees.GrossCents != tt.wantGross {
				t.Fatalf("gross = %d, want %d", fees.GrossCents, tt.wantGross)
			}
			if fees.ProviderFeeCents != tt.wantProvider {
				t.Fatalf("provider fee = %d, want %d", fees.ProviderFeeCents, tt.wantProvider)
			}
			if fees.PlatformFeeCents != tt.wantPlatform {
				t.Fatalf("platform fee = %d, want %d", fees.PlatformFeeCents, tt.wantPlatform)
			}
			if fees.NetCents != tt.wantNet {
				t.Fatalf("net = %d, want %d", fees.NetCents, tt.wantNet)
			}
		})
	}
}

func TestComputeFeesDeterministic(t *testing.T) {
	amount := decimal.RequireFromString("123.45")
	first := ComputeFees(amount, PlatformFeeRateBps)
	for i := 0; i < 10; i++ {
		if got := ComputeFees(amount, PlatformFeeRateBps); got != first {
			t.Fatalf("recomputation diverged: %+v vs %+v", got, first)
		}
	}
	if sum := first.ProviderFeeCents + first.PlatformFeeCents + first.NetCents; sum != first.GrossCents {
		t.Fatalf("split does not add up: %d != %d", sum, first.GrossCents)
	}
}

func TestPlatformRateFor(t *testing.T) {
	if got := PlatformRateFor(nil); got != PlatformFeeRateBps {
		t.Fatalf("nil commission should fall back to default, got %d", got)
	}
	rate := int64(250)
	if got := PlatformRateFor(&rate); got != 250 {
		t.Fatalf("configured commission should win, got %d", got)
	}
	negative := int64(-1)
	if got := PlatformRateFor(&negative); got != PlatformFeeRateBps {
		t.Fatalf("negative commission should fall back to default, got %d", got)
	}
}
