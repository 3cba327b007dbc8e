package ethrpc

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

var ErrNoSeed = errors.New("hd master seed is not configured")

type EthRpc struct {
	logger        *logger.Logger
	externalChain *hdkeychain.ExtendedKey
	explorer      IExplorer
	node          INode
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (*EthRpc, error) {
	var explorer IExplorer
	if appConfig.Ethereum.ExplorerAPIURL != "" {
		explorer = NewExplorer(appConfig.Ethereum.ExplorerAPIURL, appConfig.Ethereum.ExplorerAPIKey, appConfig.Ethereum.RequestsPerSecond)
	}

	var node INode
	if appConfig.Ethereum.RPCEndpoint != "" {
		client, err := ethclient.Dial(appConfig.Ethereum.RPCEndpoint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to dial ethereum rpc")
		}
		node = client
	}

	return NewWithClients(appConfig, logger, explorer, node)
}

func NewWithClients(appConfig *config.AppConfig, logger *logger.Logger, explorer IExplorer, node INode) (*EthRpc, error) {
	e := &EthRpc{
		logger:   logger,
		explorer: explorer,
		node:     node,
	}

	if appConfig.Wallet.HDMasterSeed == "" {
		logger.Warn("[ethrpc.New] HD master seed not set, address generation disabled", nil)
		return e, nil
	}

	chain, err := newExternalChain(appConfig.Wallet.HDMasterSeed)
	if err != nil {
		return nil, err
	}
	e.externalChain = chain
	return e, nil
}

func (e *EthRpc) Chain() model.Chain {
	return model.ChainETH
}

func (e *EthRpc) MinConfirmations() int {
	return consts.ETH_MIN_CONFIRMATIONS
}

func (e *EthRpc) GenerateAddress(ctx context.Context, index uint32) (*chainadapter.GeneratedAddress, error) {
	if e.externalChain == nil {
		return nil, ErrNoSeed
	}
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("derivation index %d out of range", index)
	}

	key, err := deriveKey(e.externalChain, index)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive index %d", index)
	}

	return &chainadapter.GeneratedAddress{
		Address:         crypto.PubkeyToAddress(key.PublicKey).Hex(),
		DerivationIndex: index,
		PrivateKey:      crypto.FromECDSA(key),
	}, nil
}

func (e *EthRpc) CheckTransactions(ctx context.Context, deposit chainadapter.Deposit) *chainadapter.ConfirmationResult {
	address := deposit.Address
	if !common.IsHexAddress(address) {
		return chainadapter.NotConfirmed(fmt.Errorf("invalid ethereum address %q", address))
	}

	if e.explorer != nil {
		res, err := e.checkExplorer(ctx, deposit)
		if err == nil {
			return res
		}
		e.logger.Warn("[CheckTransactions][checkExplorer] falling back to node", map[string]string{
			"error":   err.Error(),
			"address": address,
		})
		if ctx.Err() != nil {
			return chainadapter.NotConfirmed(ctx.Err())
		}
	}

	if e.node == nil {
		return chainadapter.NotConfirmed(errors.New("no ethereum explorer or node available"))
	}
	return e.checkNode(ctx, deposit)
}

// Balance is the latest balance of address in ETH. Without a node no balance check ever
// runs, so it reports zero.
func (e *EthRpc) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if e.node == nil {
		return decimal.Zero, nil
	}
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid ethereum address %q", address)
	}
	wei, err := e.node.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to fetch balance")
	}
	return decimal.NewFromBigInt(wei, -consts.ETH_DECIMALS), nil
}

func (e *EthRpc) checkExplorer(ctx context.Context, deposit chainadapter.Deposit) (*chainadapter.ConfirmationResult, error) {
	txs, err := e.explorer.ListTransactions(ctx, deposit.Address)
	if err != nil {
		return nil, err
	}

	for _, tx := range txs {
		if ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64); err == nil && deposit.Predates(time.Unix(ts, 0)) {
			break
		}
		if !strings.EqualFold(tx.To, deposit.Address) || tx.IsError == "1" {
			continue
		}
		wei, ok := new(big.Int).SetString(tx.Value, 10)
		if !ok || wei.Sign() <= 0 {
			continue
		}
		confirmations, err := strconv.Atoi(tx.Confirmations)
		if err != nil {
			confirmations = 0
		}

		return chainadapter.Observed(decimal.NewFromBigInt(wei, -consts.ETH_DECIMALS), tx.Hash, confirmations, deposit.MinConfirmations), nil
	}

	return chainadapter.NotConfirmed(nil), nil
}

// checkNode reads the balance as of the block that would give minConfirmations and counts
// only what sits above the baseline taken at assignment. The funding hash is unknown on this path.
func (e *EthRpc) checkNode(ctx context.Context, deposit chainadapter.Deposit) *chainadapter.ConfirmationResult {
	account := common.HexToAddress(deposit.Address)
	minConfirmations := deposit.MinConfirmations

	head, err := e.node.HeaderByNumber(ctx, nil)
	if err != nil {
		return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch head"))
	}

	if minConfirmations < 1 {
		minConfirmations = 1
	}
	settled := new(big.Int).Sub(head.Number, big.NewInt(int64(minConfirmations-1)))
	if settled.Sign() < 0 {
		settled = big.NewInt(0)
	}

	balance, err := e.node.BalanceAt(ctx, account, settled)
	if err != nil {
		return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch balance"))
	}
	if received := receivedAbove(balance, deposit.Baseline); received.IsPositive() {
		return chainadapter.Observed(received, "", minConfirmations, minConfirmations)
	}

	latest, err := e.node.BalanceAt(ctx, account, nil)
	if err != nil {
		return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch balance"))
	}
	if received := receivedAbove(latest, deposit.Baseline); received.IsPositive() {
		return chainadapter.Observed(received, "", 0, minConfirmations)
	}
	return chainadapter.NotConfirmed(nil)
}

func receivedAbove(wei *big.Int, baseline decimal.Decimal) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -consts.ETH_DECIMALS).Sub(baseline)
}

func (e *EthRpc) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid ethereum address %q", address)
	}
	if common.HexToAddress(address) == (common.Address{}) {
		return errors.New("zero address is not allowed")
	}
	return nil
}

func (e *EthRpc) ExplorerTxURL(txHash string) string {
	return consts.ETH_EXPLORER_TX_URL + txHash
}
