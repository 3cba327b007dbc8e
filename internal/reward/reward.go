package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/baserpc"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/pricefeed"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

type RewardService struct {
	baseRPC   baserpc.IBaseRPC
	priceFeed pricefeed.IPriceFeed
	appConfig *config.AppConfig
	logger    *logger.Logger
}

func New(baseRPC baserpc.IBaseRPC, priceFeed pricefeed.IPriceFeed, appConfig *config.AppConfig, logger *logger.Logger) *RewardService {
	return &RewardService{
		baseRPC:   baseRPC,
		priceFeed: priceFeed,
		appConfig: appConfig,
		logger:    logger,
	}
}

func (s *RewardService) CalculateRewardAmount(ctx context.Context, fundedAmount decimal.Decimal, chain model.Chain) (*RewardCalculation, error) {
	price, err := s.priceFeed.GetUSDPrice(ctx, chain)
	if err != nil {
		return nil, err
	}

	usdValue := fundedAmount.Mul(price.USD)
	if usdValue.LessThan(s.appConfig.Reward.MinFundingUSD) {
		return nil, errors.Wrap(ErrBelowMinimumFunding, fmt.Sprintf("%s USD < %s USD", usdValue.StringFixed(2), s.appConfig.Reward.MinFundingUSD))
	}

	decimals, err := s.baseRPC.TokenDecimals(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read token decimals")
	}

	rewardAmount := usdValue.Mul(s.appConfig.Reward.Multiplier).Truncate(int32(decimals))
	raw := model.Web3BigIntFromDecimal(rewardAmount, int(decimals))

	return &RewardCalculation{
		FundedAmount:    fundedAmount,
		Chain:           chain,
		PriceUSD:        price.USD,
		PriceSource:     string(price.Source),
		USDValue:        usdValue,
		RewardAmount:    rewardAmount,
		RewardTokensRaw: raw.Value,
		TokenDecimals:   decimals,
	}, nil
}

func (s *RewardService) SendRewardTokens(ctx context.Context, toAddress string, fundedAmount decimal.Decimal, chain model.Chain, fundingID string) (*RewardResult, error) {
	submitted, err := s.SubmitReward(ctx, toAddress, fundedAmount, chain, fundingID)
	if err != nil {
		return nil, err
	}
	return s.AwaitReward(ctx, submitted)
}

func (s *RewardService) SubmitReward(ctx context.Context, toAddress string, fundedAmount decimal.Decimal, chain model.Chain, fundingID string) (*SubmittedReward, error) {
	if !IsValidRecipient(toAddress) {
		return nil, errors.Wrap(ErrInvalidRecipient, toAddress)
	}
	to := common.HexToAddress(toAddress)

	calc, err := s.CalculateRewardAmount(ctx, fundedAmount, chain)
	if err != nil {
		return nil, err
	}

	amount, ok := (&model.Web3BigInt{Value: calc.RewardTokensRaw, Decimal: int(calc.TokenDecimals)}).BigInt()
	if !ok || amount.Sign() <= 0 {
		return nil, errors.Wrap(ErrBelowMinimumFunding, "reward rounds to zero")
	}

	balance, err := s.baseRPC.TokenBalanceOf(ctx, s.baseRPC.TreasuryAddress())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read treasury balance")
	}
	treasury, _ := balance.BigInt()
	if treasury == nil || treasury.Cmp(amount) < 0 {
		return nil, errors.Wrap(ErrInsufficientTreasuryBalance, fmt.Sprintf("have %s, need %s", balance.ToDecimal(), calc.RewardAmount))
	}

	gas, err := s.baseRPC.EstimateTransferGas(ctx, to, amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate gas")
	}
	gasLimit := s.bufferedGas(gas)

	tx, err := s.baseRPC.Transfer(ctx, to, amount, gasLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit reward transfer")
	}

	s.logger.Info("[SubmitReward][Transfer] submitted", map[string]string{
		"funding_id":    fundingID,
		"tx_hash":       tx.Hash().Hex(),
		"to":            to.Hex(),
		"reward_amount": calc.RewardAmount.String(),
		"gas_limit":     fmt.Sprint(gasLimit),
	})

	return &SubmittedReward{
		Tx:           tx,
		TxHash:       tx.Hash().Hex(),
		RewardAmount: calc.RewardAmount,
		USDValue:     calc.USDValue,
	}, nil
}

func (s *RewardService) AwaitReward(ctx context.Context, submitted *SubmittedReward) (*RewardResult, error) {
	timeout := s.appConfig.Reward.TxTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := s.baseRPC.WaitMined(waitCtx, submitted.Tx)
	if err != nil {
		return nil, errors.Wrap(ErrRewardTxPending, fmt.Sprintf("%s: %v", submitted.TxHash, err))
	}
	return s.settled(submitted.TxHash, receipt, submitted.RewardAmount, submitted.USDValue)
}

func (s *RewardService) ReconcileReward(ctx context.Context, txHash string, rewardAmount decimal.Decimal) (*RewardResult, error) {
	receipt, known, err := s.baseRPC.TransferReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, errors.Wrap(ErrRewardTxPending, fmt.Sprintf("%s: %v", txHash, err))
	}
	if receipt == nil {
		if known {
			return nil, errors.Wrap(ErrRewardTxPending, txHash)
		}
		return nil, errors.Wrap(ErrRewardTxDropped, txHash)
	}
	return s.settled(txHash, receipt, rewardAmount, decimal.Zero)
}

func (s *RewardService) settled(txHash string, receipt *types.Receipt, rewardAmount, usdValue decimal.Decimal) (*RewardResult, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Wrap(ErrRewardTxReverted, txHash)
	}

	result := &RewardResult{
		TxHash:       txHash,
		GasUsed:      receipt.GasUsed,
		RewardAmount: rewardAmount,
		USDValue:     usdValue,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

func (s *RewardService) Info(ctx context.Context) (*Info, error) {
	decimals, err := s.baseRPC.TokenDecimals(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := s.baseRPC.TokenBalanceOf(ctx, s.baseRPC.TreasuryAddress())
	if err != nil {
		return nil, err
	}

	return &Info{
		TreasuryAddress: s.baseRPC.TreasuryAddress().Hex(),
		TreasuryBalance: balance.ToDecimal(),
		TokenDecimals:   decimals,
		Multiplier:      s.appConfig.Reward.Multiplier,
		MinFundingUSD:   s.appConfig.Reward.MinFundingUSD,
		Prices:          s.priceFeed.GetAllUSDPrices(ctx),
	}, nil
}

func (s *RewardService) bufferedGas(estimate uint64) uint64 {
	ratio := s.appConfig.Reward.GasBufferRatio
	if ratio.LessThan(decimal.NewFromInt(1)) {
		ratio = decimal.RequireFromString("1.2")
	}
	return uint64(decimal.NewFromInt(int64(estimate)).Mul(ratio).Ceil().IntPart())
}

// IsValidRecipient reports whether address can receive ICY: a hex EVM address other than zero.
func IsValidRecipient(address string) bool {
	return common.IsHexAddress(address) && common.HexToAddress(address) != (common.Address{})
}
