package games

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// houseEdge is the fraction withheld from fair odds on every safe reveal.
var houseEdge = decimal.RequireFromString("0.03")

// payoutFactor is 1 - houseEdge as the float64 used by the payout loop.
const payoutFactor = 0.97

// rawMultiplier compounds fair odds minus the house edge once per safe tile.
// The loop order is fixed (tilesLeft strictly decreasing from totalTiles) so
// every implementation sees the same float64 rounding at each step.
func rawMultiplier(totalTiles, mineCount, safeRevealed int) float64 {
	multiplier := 1.0
	tilesLeft := totalTiles
	for i := 0; i < safeRevealed; i++ {
		safeProbability := float64(tilesLeft-mineCount) / float64(tilesLeft)
		multiplier *= (1 / safeProbability) * payoutFactor
		tilesLeft--
	}
	return multiplier
}

// MultiplierDecimal returns the payout multiplier rounded to two decimals.
//
// Rounding is half-to-even applied to the exact binary value of the float64,
// which is what the reference verifier's round(x, 2) does. Going through the
// shortest decimal representation instead would round values such as
// 2.675 (stored as 2.67499999...) the wrong way.
func MultiplierDecimal(totalTiles, mineCount, safeRevealed int) decimal.Decimal {
	raw := rawMultiplier(totalTiles, mineCount, safeRevealed)
	exact := new(big.Float).SetPrec(0).SetFloat64(raw)
	// Multipliers stay far above 2^-11, so 64 fraction digits print the value exactly.
	d := decimal.RequireFromString(exact.Text('f', 64))
	return d.RoundBank(2)
}

// Multiplier is MultiplierDecimal as a float64 for JSON responses.
func Multiplier(totalTiles, mineCount, safeRevealed int) float64 {
	f, _ := MultiplierDecimal(totalTiles, mineCount, safeRevealed).Float64()
	return f
}
