package reward

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/pricefeed"
)

type IRewardService interface {
	CalculateRewardAmount(ctx context.Context, fundedAmount decimal.Decimal, chain model.Chain) (*RewardCalculation, error)

	// SendRewardTokens pays the ICY reward for a confirmed funding and waits for the receipt.
	SendRewardTokens(ctx context.Context, toAddress string, fundedAmount decimal.Decimal, chain model.Chain, fundingID string) (*RewardResult, error)

	// SubmitReward broadcasts the ICY transfer for a confirmed funding. An error means nothing was broadcast.
	SubmitReward(ctx context.Context, toAddress string, fundedAmount decimal.Decimal, chain model.Chain, fundingID string) (*SubmittedReward, error)

	// AwaitReward waits up to REWARD_TX_TIMEOUT for the receipt. Any outcome other than
	// mined or reverted is ErrRewardTxPending.
	AwaitReward(ctx context.Context, submitted *SubmittedReward) (*RewardResult, error)

	// ReconcileReward looks up a transfer broadcast earlier without waiting.
	ReconcileReward(ctx context.Context, txHash string, rewardAmount decimal.Decimal) (*RewardResult, error)

	Info(ctx context.Context) (*Info, error)
}

type RewardCalculation struct {
	FundedAmount    decimal.Decimal `json:"funded_amount"`
	Chain           model.Chain     `json:"chain"`
	PriceUSD        decimal.Decimal `json:"price_usd"`
	PriceSource     string          `json:"price_source"`
	USDValue        decimal.Decimal `json:"usd_value"`
	RewardAmount    decimal.Decimal `json:"reward_amount"`
	RewardTokensRaw string          `json:"reward_tokens_raw"`
	TokenDecimals   uint8           `json:"token_decimals"`
}

type SubmittedReward struct {
	Tx           *types.Transaction `json:"-"`
	TxHash       string             `json:"tx_hash"`
	RewardAmount decimal.Decimal    `json:"reward_amount"`
	USDValue     decimal.Decimal    `json:"usd_value"`
}

type RewardResult struct {
	TxHash       string          `json:"tx_hash"`
	BlockNumber  uint64          `json:"block_number"`
	GasUsed      uint64          `json:"gas_used"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
	USDValue     decimal.Decimal `json:"usd_value"`
}

type Info struct {
	TreasuryAddress string                           `json:"treasury_address"`
	TreasuryBalance decimal.Decimal                  `json:"treasury_balance"`
	TokenDecimals   uint8                            `json:"token_decimals"`
	Multiplier      decimal.Decimal                  `json:"multiplier"`
	MinFundingUSD   decimal.Decimal                  `json:"min_funding_usd"`
	Prices          map[model.Chain]*pricefeed.Price `json:"prices"`
}
