package blockstream

import "context"

type IBlockStream interface {
	// GetTransactionsByAddress returns the address history, mempool first then newest confirmed
	GetTransactionsByAddress(ctx context.Context, address string) ([]Transaction, error)
	GetTipHeight(ctx context.Context) (int64, error)
}
