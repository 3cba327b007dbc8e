package baserpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

// IBaseRPC is the treasury side of the ICY token on Base.
type IBaseRPC interface {
	TreasuryAddress() common.Address
	TokenDecimals(ctx context.Context) (uint8, error)
	TokenBalanceOf(ctx context.Context, address common.Address) (*model.Web3BigInt, error)

	// EstimateTransferGas estimates transfer(to, amount) sent from the treasury
	EstimateTransferGas(ctx context.Context, to common.Address, amount *big.Int) (uint64, error)

	// Transfer signs and submits transfer(to, amount) with the given gas limit
	Transfer(ctx context.Context, to common.Address, amount *big.Int, gasLimit uint64) (*types.Transaction, error)

	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	// TransferReceipt returns the receipt of a mined transaction. Without one, known reports
	// whether the node still holds the transaction.
	TransferReceipt(ctx context.Context, hash common.Hash) (receipt *types.Receipt, known bool, err error)
}
