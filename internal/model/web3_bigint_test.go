package model

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWeb3BigInt_ToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    Web3BigInt
		expected string
	}{
		{
			name:     "one token with 6 decimals",
			input:    Web3BigInt{Value: "1000000", Decimal: 6},
			expected: "1",
		},
		{
			name:     "zero value",
			input:    Web3BigInt{Value: "0", Decimal: 18},
			expected: "0",
		},
		{
			name:     "wei to ether",
			input:    Web3BigInt{Value: "1234567890000000000", Decimal: 18},
			expected: "1.23456789",
		},
		{
			name:     "sats to btc",
			input:    Web3BigInt{Value: "150000", Decimal: 8},
			expected: "0.0015",
		},
		{
			name:     "garbage value",
			input:    Web3BigInt{Value: "abc", Decimal: 8},
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.ToDecimal().String())
		})
	}
}

func TestWeb3BigIntFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		expected string
	}{
		{name: "whole tokens", amount: "150", decimals: 18, expected: "150000000000000000000"},
		{name: "fractional lamports", amount: "0.5", decimals: 9, expected: "500000000"},
		{name: "extra precision is truncated", amount: "0.123456789", decimals: 6, expected: "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Web3BigIntFromDecimal(decimal.RequireFromString(tt.amount), tt.decimals)
			assert.Equal(t, tt.expected, got.Value)
			assert.Equal(t, tt.decimals, got.Decimal)
		})
	}
}

func TestWeb3BigInt_Add(t *testing.T) {
	tests := []struct {
		name     string
		a        Web3BigInt
		b        Web3BigInt
		expected *Web3BigInt
	}{
		{
			name:     "simple addition",
			a:        Web3BigInt{Value: "1000000", Decimal: 6},
			b:        Web3BigInt{Value: "2000000", Decimal: 6},
			expected: &Web3BigInt{Value: "3000000", Decimal: 6},
		},
		{
			name:     "different decimals",
			a:        Web3BigInt{Value: "1000000", Decimal: 6},
			b:        Web3BigInt{Value: "1000000", Decimal: 18},
			expected: nil,
		},
		{
			name:     "large numbers",
			a:        Web3BigInt{Value: "999999999999999999999999", Decimal: 18},
			b:        Web3BigInt{Value: "1", Decimal: 18},
			expected: &Web3BigInt{Value: "1000000000000000000000000", Decimal: 18},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Add(&tt.b))
		})
	}
}

func TestWeb3BigInt_Sub(t *testing.T) {
	tests := []struct {
		name     string
		a        Web3BigInt
		b        Web3BigInt
		expected *Web3BigInt
	}{
		{
			name:     "simple subtraction",
			a:        Web3BigInt{Value: "3000000", Decimal: 6},
			b:        Web3BigInt{Value: "1000000", Decimal: 6},
			expected: &Web3BigInt{Value: "2000000", Decimal: 6},
		},
		{
			name:     "negative result",
			a:        Web3BigInt{Value: "1000000", Decimal: 6},
			b:        Web3BigInt{Value: "2000000", Decimal: 6},
			expected: &Web3BigInt{Value: "-1000000", Decimal: 6},
		},
		{
			name:     "different decimals",
			a:        Web3BigInt{Value: "3000000", Decimal: 6},
			b:        Web3BigInt{Value: "1000000", Decimal: 18},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Sub(&tt.b))
		})
	}
}

func TestWeb3BigInt_Cmp(t *testing.T) {
	balance := NewWeb3BigInt(big.NewInt(5_000000), 6)
	need := &Web3BigInt{Value: "5000001", Decimal: 6}

	assert.Equal(t, -1, balance.Cmp(need))
	assert.Equal(t, 1, need.Cmp(balance))
	assert.Equal(t, 0, balance.Cmp(&Web3BigInt{Value: "5000000", Decimal: 6}))
}
