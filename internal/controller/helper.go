package controller

import (
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

// paymentURI builds the wallet URI shown as a QR code: BIP21 for bitcoin, EIP-681 for
// ethereum (value in wei) and Solana Pay for solana.
func paymentURI(chain model.Chain, address string, amount decimal.Decimal) string {
	switch chain {
	case model.ChainBTC:
		uri := "bitcoin:" + address
		if amount.IsPositive() {
			uri += "?amount=" + amount.Truncate(consts.BTC_DECIMALS).String()
		}
		return uri
	case model.ChainETH:
		uri := "ethereum:" + address
		if amount.IsPositive() {
			uri += "?value=" + amount.Shift(consts.ETH_DECIMALS).Truncate(0).String()
		}
		return uri
	case model.ChainSOL:
		uri := "solana:" + address
		if amount.IsPositive() {
			uri += "?amount=" + amount.Truncate(consts.SOL_DECIMALS).String()
		}
		return uri
	}
	return address
}
