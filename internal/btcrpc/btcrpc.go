package btcrpc

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/btcrpc/blockstream"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

var ErrNoXPub = errors.New("bitcoin xpub is not configured")

// BtcRpc watches bitcoin deposit addresses. Addresses are derived from an account-level
// xpub so the service never holds bitcoin keys.
type BtcRpc struct {
	logger      *logger.Logger
	params      *chaincfg.Params
	externalKey *hdkeychain.ExtendedKey
	blockstream blockstream.IBlockStream
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (*BtcRpc, error) {
	return NewWithClient(appConfig, logger, blockstream.New(appConfig, logger))
}

func NewWithClient(appConfig *config.AppConfig, logger *logger.Logger, client blockstream.IBlockStream) (*BtcRpc, error) {
	params, err := NetworkParams(appConfig.Bitcoin.Network)
	if err != nil {
		return nil, err
	}

	b := &BtcRpc{
		logger:      logger,
		params:      params,
		blockstream: client,
	}

	if appConfig.Bitcoin.XPub == "" {
		logger.Warn("[btcrpc.New] BTC_XPUB not set, address generation disabled", nil)
		return b, nil
	}

	accountKey, err := hdkeychain.NewKeyFromString(appConfig.Bitcoin.XPub)
	if err != nil {
		return nil, errors.Wrap(err, "invalid bitcoin xpub")
	}
	if accountKey.IsPrivate() {
		return nil, errors.New("bitcoin xpub must be a public key")
	}
	// receive branch of the account
	b.externalKey, err = accountKey.Derive(0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive receive branch")
	}

	return b, nil
}

func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", network)
	}
}

func (b *BtcRpc) Chain() model.Chain {
	return model.ChainBTC
}

func (b *BtcRpc) MinConfirmations() int {
	return consts.BTC_MIN_CONFIRMATIONS
}

func (b *BtcRpc) GenerateAddress(ctx context.Context, index uint32) (*chainadapter.GeneratedAddress, error) {
	if b.externalKey == nil {
		return nil, ErrNoXPub
	}
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("derivation index %d out of range", index)
	}

	child, err := b.externalKey.Derive(index)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive index %d", index)
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get public key")
	}

	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey.SerializeCompressed()), b.params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode address")
	}

	return &chainadapter.GeneratedAddress{
		Address:         addr.EncodeAddress(),
		DerivationIndex: index,
	}, nil
}

func (b *BtcRpc) CheckTransactions(ctx context.Context, deposit chainadapter.Deposit) *chainadapter.ConfirmationResult {
	address := deposit.Address
	txs, err := b.blockstream.GetTransactionsByAddress(ctx, address)
	if err != nil {
		b.logger.Error("[CheckTransactions][GetTransactionsByAddress]", map[string]string{
			"error":   err.Error(),
			"address": address,
		})
		return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch bitcoin transactions"))
	}

	// newest first; mempool entries carry no block time and always belong to the current holder
	for _, tx := range txs {
		if tx.Status.Confirmed && tx.Status.BlockTime > 0 && deposit.Predates(time.Unix(tx.Status.BlockTime, 0)) {
			break
		}
		sats := tx.ReceivedBy(address)
		if sats <= 0 {
			continue
		}

		confirmations := 0
		if tx.Status.Confirmed {
			tip, err := b.blockstream.GetTipHeight(ctx)
			if err != nil {
				return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch tip height"))
			}
			confirmations = int(tip - tx.Status.BlockHeight + 1)
			if confirmations < 0 {
				confirmations = 0
			}
		}

		return chainadapter.Observed(decimal.New(sats, -consts.BTC_DECIMALS), tx.TxID, confirmations, deposit.MinConfirmations)
	}

	return chainadapter.NotConfirmed(nil)
}

func (b *BtcRpc) ValidateAddress(address string) error {
	addr, err := btcutil.DecodeAddress(address, b.params)
	if err != nil {
		return errors.Wrap(err, "invalid bitcoin address")
	}
	if !addr.IsForNet(b.params) {
		return fmt.Errorf("address %s is not for %s", address, b.params.Name)
	}
	return nil
}

func (b *BtcRpc) ExplorerTxURL(txHash string) string {
	if b.params.Net == chaincfg.MainNetParams.Net {
		return consts.BTC_EXPLORER_TX_URL + txHash
	}
	return consts.BTC_TESTNET_EXPLORER_TX_URL + txHash
}
