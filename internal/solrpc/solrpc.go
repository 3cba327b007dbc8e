package solrpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

// signatures inspected per check, newest first
const signatureScanLimit = 10

var ErrNoSeed = errors.New("hd master seed is not configured")

type SolRpc struct {
	logger *logger.Logger
	master *extendedKey
	client IClient
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (*SolRpc, error) {
	var client IClient
	if appConfig.Solana.RPCEndpoint != "" {
		client = NewClient(appConfig.Solana.RPCEndpoint, appConfig.Solana.RequestsPerSecond)
	}
	return NewWithClient(appConfig, logger, client)
}

func NewWithClient(appConfig *config.AppConfig, logger *logger.Logger, client IClient) (*SolRpc, error) {
	s := &SolRpc{logger: logger, client: client}

	if appConfig.Wallet.HDMasterSeed == "" {
		logger.Warn("[solrpc.New] HD master seed not set, address generation disabled", nil)
		return s, nil
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(appConfig.Wallet.HDMasterSeed, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "hd master seed must be hex")
	}
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("hd master seed must be 16 to 64 bytes, got %d", len(seed))
	}
	s.master = newMasterKey(seed)
	return s, nil
}

func (s *SolRpc) Chain() model.Chain {
	return model.ChainSOL
}

func (s *SolRpc) MinConfirmations() int {
	return consts.SOL_MIN_CONFIRMATIONS
}

// GenerateAddress derives m/44'/501'/index'/0'.
func (s *SolRpc) GenerateAddress(ctx context.Context, index uint32) (*chainadapter.GeneratedAddress, error) {
	if s.master == nil {
		return nil, ErrNoSeed
	}
	if index >= hardenedOffset {
		return nil, fmt.Errorf("derivation index %d out of range", index)
	}

	node := s.master.derivePath(44, 501, index, 0)
	return &chainadapter.GeneratedAddress{
		Address:         base58.Encode(node.publicKey()),
		DerivationIndex: index,
		PrivateKey:      append([]byte(nil), node.key...),
	}, nil
}

func (s *SolRpc) CheckTransactions(ctx context.Context, deposit chainadapter.Deposit) *chainadapter.ConfirmationResult {
	address := deposit.Address
	if s.client == nil {
		return chainadapter.NotConfirmed(errors.New("solana rpc endpoint is not configured"))
	}

	sigs, err := s.client.GetSignaturesForAddress(ctx, address, signatureScanLimit)
	if err != nil {
		s.logger.Error("[CheckTransactions][GetSignaturesForAddress]", map[string]string{
			"error":   err.Error(),
			"address": address,
		})
		return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch signatures"))
	}

	// newest first
	for _, sig := range sigs {
		if sig.BlockTime != nil && deposit.Predates(time.Unix(*sig.BlockTime, 0)) {
			break
		}
		if sig.Err != nil {
			continue
		}

		tx, err := s.client.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch transaction"))
		}
		if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
			continue
		}
		lamports := tx.LamportDelta(address)
		if lamports <= 0 {
			continue
		}

		status, err := s.client.GetSignatureStatus(ctx, sig.Signature)
		if err != nil {
			return chainadapter.NotConfirmed(errors.Wrap(err, "failed to fetch signature status"))
		}

		return chainadapter.Observed(decimal.New(lamports, -consts.SOL_DECIMALS), sig.Signature, confirmationsOf(status), deposit.MinConfirmations)
	}

	return chainadapter.NotConfirmed(nil)
}

// confirmationsOf maps a signature status to a count. A rooted slot reports null.
func confirmationsOf(status *SignatureStatus) int {
	if status == nil || status.Err != nil {
		return 0
	}
	if status.Confirmations == nil {
		return consts.SOL_FINALIZED_CONFIRMATIONS
	}
	return *status.Confirmations
}

func (s *SolRpc) ValidateAddress(address string) error {
	decoded := base58.Decode(address)
	if len(decoded) != 32 {
		return fmt.Errorf("invalid solana address %q", address)
	}
	return nil
}

func (s *SolRpc) ExplorerTxURL(txHash string) string {
	return consts.SOL_EXPLORER_TX_URL + txHash
}
