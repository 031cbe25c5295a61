package engine

import (
	"math/big"

	"github.com/cryptarena/arenad/internal/domain"
)

// MovementBps returns the signed price movement between two PriceScale
// samples in basis points, rounded toward negative infinity. The widened
// intermediate keeps (end-start)*10000 from overflowing for any int64 price.
func MovementBps(start, end int64) int64 {
	num := new(big.Int).Mul(big.NewInt(end-start), big.NewInt(10_000))
	// big.Int.Div is Euclidean: floor semantics for a positive divisor.
	q := new(big.Int).Div(num, big.NewInt(start))
	return q.Int64()
}

// rewardShare is what one of n co-winners collects from a losing stake:
// floor(stake * 0.9 / n). The remaining tenth is the treasury's.
func rewardShare(stake int64, n int) int64 {
	if n < 1 {
		n = 1
	}
	return stake * (10_000 - domain.TreasuryFeeBps) / (10_000 * int64(n))
}

// feeShare is the treasury's cut of a losing stake: floor(stake * 0.1).
func feeShare(stake int64) int64 {
	return stake * domain.TreasuryFeeBps / 10_000
}
