package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrizeCommission(t *testing.T) {
	// 3 players at 200 entry, 10% game cut
	assert.Equal(t, 60.0, PrizeCommission(600, 10, false))

	// subscriber pays 75% of the game's rate
	assert.Equal(t, 45.0, PrizeCommission(600, 10, true))

	// deterministic: same inputs, same output
	for i := 0; i < 5; i++ {
		assert.Equal(t, 60.0, PrizeCommission(600, 10, false))
	}

	// degenerate inputs
	assert.Equal(t, 0.0, PrizeCommission(0, 10, false))
	assert.Equal(t, 0.0, PrizeCommission(-50, 10, false))
	assert.Equal(t, 0.0, PrizeCommission(600, 0, false))
	assert.Equal(t, 0.0, PrizeCommission(600, -3, true))
}

func TestPrizeCommissionRounding(t *testing.T) {
	// 33.33 * 3 pool at 12% = 11.9988 → 12.00
	assert.Equal(t, 12.0, PrizeCommission(99.99, 12, false))

	// half-away-from-zero at the cents boundary
	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, -0.13, Round2(-0.125))
}

func TestTransactionCommissionBands(t *testing.T) {
	assert.Equal(t, 2.5, TransactionCommission(50))     // 5%
	assert.Equal(t, 4.0, TransactionCommission(100))    // 4%
	assert.Equal(t, 19.96, TransactionCommission(499))  // 4%
	assert.Equal(t, 15.0, TransactionCommission(500))   // 3%
	assert.Equal(t, 25.0, TransactionCommission(1000))  // 2.5%
	assert.Equal(t, 100.0, TransactionCommission(5000)) // 2%
	assert.Equal(t, 0.0, TransactionCommission(0))
	assert.Equal(t, 0.0, TransactionCommission(-10))
}

// The two calculators are intentionally different formulas; a pool that
// happens to equal a withdrawal amount does not imply equal fees.
func TestCommissionCalculatorsDiverge(t *testing.T) {
	amount := 600.0
	assert.NotEqual(t, PrizeCommission(amount, 10, false), TransactionCommission(amount))
}
