package math

import (
	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"
)

// Amounts and shares live in an unsigned 128-bit domain. Intermediates are
// arbitrary precision, so the only overflow that can occur is a result
// escaping the domain.
var MaxAmount = big.Sub(big.Lsh(big.NewInt(1), 128), big.NewInt(1))

// 10^39 > 2^128, so any larger scale floors every representable amount to zero.
const MaxMultiplierDecimals = 38

// SharesForAmount computes floor(amount * multiplier / 10^decimals).
// Division floors toward zero, which on the non-negative domain equals
// truncation.
func SharesForAmount(amount big.Int, multiplier uint64, decimals uint64) (big.Int, error) {
	if amount.Nil() || amount.LessThanEqual(big.Zero()) {
		return big.Zero(), xerrors.Errorf("invalid amount %v", amount)
	}
	if amount.GreaterThan(MaxAmount) {
		return big.Zero(), xerrors.Errorf("arithmetic overflow: amount %v exceeds 128 bits", amount)
	}
	if decimals > MaxMultiplierDecimals {
		return big.Zero(), xerrors.Errorf("arithmetic overflow: multiplier decimals %d out of range", decimals)
	}

	shares := big.Div(big.Mul(amount, big.NewIntUnsigned(multiplier)), Pow10(decimals))
	if shares.GreaterThan(MaxAmount) {
		return big.Zero(), xerrors.Errorf("arithmetic overflow: shares for amount %v with multiplier %d exceed 128 bits", amount, multiplier)
	}
	return shares, nil
}

// Pow10 returns 10^n.
func Pow10(n uint64) big.Int {
	out := big.NewInt(1)
	ten := big.NewInt(10)
	for i := uint64(0); i < n; i++ {
		out = big.Mul(out, ten)
	}
	return out
}
