package ethrpc

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

// bip44Prefix is m/44'/60'/0'/0
var bip44Prefix = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
}

// newExternalChain derives the BIP44 ethereum receive branch from a hex seed.
func newExternalChain(seedHex string) (*hdkeychain.ExtendedKey, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "hd master seed must be hex")
	}

	// the network only affects serialization, not derivation
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hd master seed")
	}

	for _, i := range bip44Prefix {
		key, err = key.Derive(i)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive account")
		}
	}
	return key, nil
}

func deriveKey(chain *hdkeychain.ExtendedKey, index uint32) (*ecdsa.PrivateKey, error) {
	child, err := chain.Derive(index)
	if err != nil {
		return nil, err
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}
