package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Web3BigInt is an on-chain integer amount in base units (sats, wei, lamports, token units)
// together with the number of decimals of its whole unit.
type Web3BigInt struct {
	Value   string `json:"value"`
	Decimal int    `json:"decimal"`
}

func NewWeb3BigInt(value *big.Int, decimals int) *Web3BigInt {
	if value == nil {
		value = big.NewInt(0)
	}
	return &Web3BigInt{
		Value:   value.String(),
		Decimal: decimals,
	}
}

// Web3BigIntFromDecimal converts a whole-unit amount to base units, truncating extra precision.
func Web3BigIntFromDecimal(amount decimal.Decimal, decimals int) *Web3BigInt {
	raw := amount.Shift(int32(decimals)).Truncate(0)
	return &Web3BigInt{
		Value:   raw.BigInt().String(),
		Decimal: decimals,
	}
}

func (w *Web3BigInt) BigInt() (*big.Int, bool) {
	return new(big.Int).SetString(w.Value, 10)
}

// ToDecimal returns the amount in whole units.
func (w *Web3BigInt) ToDecimal() decimal.Decimal {
	num, ok := w.BigInt()
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(num, int32(-w.Decimal))
}

func (w *Web3BigInt) Cmp(number *Web3BigInt) int {
	return w.ToDecimal().Cmp(number.ToDecimal())
}

// Add returns nil when the operands use different decimals.
func (w *Web3BigInt) Add(number *Web3BigInt) *Web3BigInt {
	if w.Decimal != number.Decimal {
		return nil
	}

	num1, _ := w.BigInt()
	num2, _ := number.BigInt()
	if num1 == nil || num2 == nil {
		return nil
	}

	return NewWeb3BigInt(new(big.Int).Add(num1, num2), w.Decimal)
}

// Sub returns nil when the operands use different decimals.
func (w *Web3BigInt) Sub(number *Web3BigInt) *Web3BigInt {
	if w.Decimal != number.Decimal {
		return nil
	}

	num1, _ := w.BigInt()
	num2, _ := number.BigInt()
	if num1 == nil || num2 == nil {
		return nil
	}

	return NewWeb3BigInt(new(big.Int).Sub(num1, num2), w.Decimal)
}
