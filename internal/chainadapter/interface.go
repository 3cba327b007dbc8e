// Package chainadapter defines what the pipeline needs from a deposit chain.
package chainadapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type IAdapter interface {
	Chain() model.Chain
	MinConfirmations() int

	// GenerateAddress derives the deposit address at index. PrivateKey is nil for
	// watch-only derivations.
	GenerateAddress(ctx context.Context, index uint32) (*GeneratedAddress, error)

	// CheckTransactions looks for the newest inbound transfer to deposit.Address made while
	// the current holder had it. It never fails out of band: problems are reported through
	// ConfirmationResult.Err.
	CheckTransactions(ctx context.Context, deposit Deposit) *ConfirmationResult

	ValidateAddress(address string) error
	ExplorerTxURL(txHash string) string
}

// BalanceReader is implemented by adapters whose inspection can fall back to a plain
// balance. The balance at assignment becomes Deposit.Baseline.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}

// ClockSkew is how far a chain timestamp may sit before the assignment time and still count.
// Pool addresses go back out only after a cooldown well above it.
const ClockSkew = 10 * time.Minute

// Deposit is one assignment of a pool address.
type Deposit struct {
	Address          string
	MinConfirmations int
	// Since is when the address was handed to this funding. Zero accepts any transfer.
	Since time.Time
	// Baseline is the address balance at Since.
	Baseline decimal.Decimal
}

// Predates reports whether a transfer stamped at is older than this assignment.
func (d Deposit) Predates(at time.Time) bool {
	return !d.Since.IsZero() && at.Before(d.Since.Add(-ClockSkew))
}

type GeneratedAddress struct {
	Address         string
	DerivationIndex uint32
	PrivateKey      []byte
}

type ConfirmationResult struct {
	Confirmed     bool
	Amount        decimal.Decimal
	TxHash        string
	Confirmations int
	Err           error
}

// NotConfirmed builds the result returned on any failure path.
func NotConfirmed(err error) *ConfirmationResult {
	return &ConfirmationResult{Amount: decimal.Zero, Err: err}
}

// Observed builds the result for an inbound transfer that was found on chain.
func Observed(amount decimal.Decimal, txHash string, confirmations, minConfirmations int) *ConfirmationResult {
	return &ConfirmationResult{
		Confirmed:     confirmations >= minConfirmations,
		Amount:        amount,
		TxHash:        txHash,
		Confirmations: confirmations,
	}
}
