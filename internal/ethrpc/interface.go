package ethrpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// IExplorer is an Etherscan compatible account API.
type IExplorer interface {
	// ListTransactions returns normal transactions touching address, newest first
	ListTransactions(ctx context.Context, address string) ([]ExplorerTx, error)
}

// INode is the part of ethclient.Client used when no explorer answers.
type INode interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}
