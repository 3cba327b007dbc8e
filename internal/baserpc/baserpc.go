package baserpc

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/dwarvesf/icy-funding-backend/contracts/erc20"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

type erc20Service struct {
	address     common.Address
	icyInstance *erc20.Erc20
	abi         *abi.ABI
	client      *ethclient.Client
}

type BaseRPC struct {
	logger       *logger.Logger
	erc20Service erc20Service
	treasury     common.Address
	signer       *bind.TransactOpts

	mu       sync.Mutex
	decimals *uint8
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (IBaseRPC, error) {
	key, err := ParseTreasuryKey(appConfig.Blockchain.TreasuryPrivateKey)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(appConfig.Blockchain.ICYContractAddr) {
		return nil, errors.New("invalid ICY contract address")
	}

	client, err := ethclient.Dial(appConfig.Blockchain.BaseRPCEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial base rpc")
	}

	icyAddress := common.HexToAddress(appConfig.Blockchain.ICYContractAddr)
	icy, err := erc20.NewErc20(icyAddress, client)
	if err != nil {
		return nil, err
	}
	tokenABI, err := erc20.Erc20MetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch base chain id")
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}

	b := &BaseRPC{
		logger: logger,
		erc20Service: erc20Service{
			address:     icyAddress,
			icyInstance: icy,
			abi:         tokenABI,
			client:      client,
		},
		treasury: signer.From,
		signer:   signer,
	}

	logger.Info("[baserpc.New] treasury ready", map[string]string{
		"treasury": b.treasury.Hex(),
		"token":    icyAddress.Hex(),
		"chainId":  chainID.String(),
	})
	return b, nil
}

// ParseTreasuryKey accepts a hex private key with or without 0x.
func ParseTreasuryKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, errors.New("treasury private key is not configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid treasury private key")
	}
	return key, nil
}

func (b *BaseRPC) TreasuryAddress() common.Address {
	return b.treasury
}

func (b *BaseRPC) TokenDecimals(ctx context.Context) (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.decimals != nil {
		return *b.decimals, nil
	}

	decimals, err := b.erc20Service.icyInstance.Decimals(&bind.CallOpts{Context: ctx})
	if err != nil {
		return 0, err
	}
	b.decimals = &decimals
	return decimals, nil
}

func (b *BaseRPC) TokenBalanceOf(ctx context.Context, address common.Address) (*model.Web3BigInt, error) {
	decimals, err := b.TokenDecimals(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := b.erc20Service.icyInstance.BalanceOf(&bind.CallOpts{Context: ctx}, address)
	if err != nil {
		b.logger.Error("[TokenBalanceOf][BalanceOf]", map[string]string{
			"error":   err.Error(),
			"address": address.Hex(),
		})
		return nil, err
	}
	return model.NewWeb3BigInt(balance, int(decimals)), nil
}

func (b *BaseRPC) EstimateTransferGas(ctx context.Context, to common.Address, amount *big.Int) (uint64, error) {
	data, err := b.erc20Service.abi.Pack("transfer", to, amount)
	if err != nil {
		return 0, err
	}

	token := b.erc20Service.address
	return b.erc20Service.client.EstimateGas(ctx, ethereum.CallMsg{
		From: b.treasury,
		To:   &token,
		Data: data,
	})
}

func (b *BaseRPC) Transfer(ctx context.Context, to common.Address, amount *big.Int, gasLimit uint64) (*types.Transaction, error) {
	opts := *b.signer
	opts.Context = ctx
	opts.GasLimit = gasLimit

	tx, err := b.erc20Service.icyInstance.Transfer(&opts, to, amount)
	if err != nil {
		b.logger.Error("[Transfer][icyInstance.Transfer]", map[string]string{
			"error":  err.Error(),
			"to":     to.Hex(),
			"amount": amount.String(),
		})
		return nil, err
	}
	return tx, nil
}

func (b *BaseRPC) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, b.erc20Service.client, tx)
}

func (b *BaseRPC) TransferReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	receipt, err := b.erc20Service.client.TransactionReceipt(ctx, hash)
	if err == nil {
		return receipt, true, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return nil, false, err
	}

	_, _, err = b.erc20Service.client.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return nil, true, nil
}
