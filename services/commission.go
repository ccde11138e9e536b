package services

import "math"

// Subscribers get 25% off the game's commission percentage.
const subscriberDiscountFactor = 0.75

// Round2 rounds to two decimals, half away from zero on the cents boundary.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PrizeCommission computes the platform's cut of a match prize pool.
// Pure and deterministic: identical inputs always produce identical output.
// Non-positive pool or percentage yields 0. The winner payout is
// pool - PrizeCommission(pool, pct, subscriber).
func PrizeCommission(prizePool, pct float64, subscriberDiscount bool) float64 {
	if prizePool <= 0 || pct <= 0 {
		return 0
	}
	effective := pct
	if subscriberDiscount {
		effective = pct * subscriberDiscountFactor
	}
	return Round2(prizePool * effective / 100)
}

// Transaction commission bands: small amounts pay a higher rate.
// Deliberately independent of PrizeCommission: tiered by amount size
// rather than by game percentage, used for generic fee estimation on
// deposits/withdrawals.
var commissionBands = []struct {
	below float64
	pct   float64
}{
	{100, 5.0},
	{500, 4.0},
	{1000, 3.0},
	{5000, 2.5},
}

const commissionBandTopPct = 2.0

// TransactionCommission estimates the platform fee on a raw amount using
// banded rates. Non-positive amounts yield 0.
func TransactionCommission(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	pct := commissionBandTopPct
	for _, b := range commissionBands {
		if amount < b.below {
			pct = b.pct
			break
		}
	}
	return Round2(amount * pct / 100)
}
