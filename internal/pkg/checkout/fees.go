package checkout

import (
	"github.com/shopspring/decimal"
)

// Fee rates in basis points of gross. The provider rate mirrors Mercado
// Pago's PIX pricing; the platform rate applies unless the streamer has a
// negotiated commission on their connected account.
const (
	ProviderFeeRateBps int64 = 399
	PlatformFeeRateBps int64 = 500
)

var bpsDivisor = decimal.NewFromInt(10000)

// FeeBreakdown is the fixed-point split of one captured payment.
type FeeBreakdown struct {
	GrossCents       int64
	ProviderFeeCents int64
	PlatformFeeCents int64
	NetCents         int64
}

// ComputeFees converts a provider amount in reais to integer cents and splits
// it deterministically. All rounding is half away from zero on whole cents so
// replayed webhooks always recompute identical numbers.
func ComputeFees(amountReais decimal.Decimal, platformRateBps int64) FeeBreakdown {
	gross := amountReais.Mul(decimal.NewFromInt(100)).Round(0)

	providerFee := gross.Mul(decimal.NewFromInt(ProviderFeeRateBps)).Div(bpsDivisor).Round(0)
	platformFee := gross.Mul(decimal.NewFromInt(platformRateBps)).Div(bpsDivisor).Round(0)

	grossCents := gross.IntPart()
	providerCents := providerFee.IntPart()
	platformCents := platformFee.IntPart()

	return FeeBreakdown{
		GrossCents:       grossCents,
		ProviderFeeCents: providerCents,
		PlatformFeeCents: platformCents,
		NetCents:         grossCents - providerCents - platformCents,
	}
}

// PlatformRateFor picks the effective platform rate for a streamer: the
// configured commission when present, the flat default otherwise.
func PlatformRateFor(commissionBps *int64) int64 {
	if commissionBps != nil && *commissionBps >= 0 {
		return *commissionBps
	}
	return PlatformFeeRateBps
}
