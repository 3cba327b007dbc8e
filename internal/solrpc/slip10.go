package solrpc

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
)

const hardenedOffset uint32 = 0x80000000

// extendedKey is a SLIP-0010 ed25519 node. ed25519 only supports hardened children.
type extendedKey struct {
	key       []byte
	chainCode []byte
}

func newMasterKey(seed []byte) *extendedKey {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return &extendedKey{key: sum[:32], chainCode: sum[32:]}
}

// derive returns the hardened child i (the offset is added here).
func (k *extendedKey) derive(i uint32) *extendedKey {
	data := make([]byte, 0, 37)
	data = append(data, 0x00)
	data = append(data, k.key...)
	data = binary.BigEndian.AppendUint32(data, i|hardenedOffset)

	mac := hmac.New(sha512.New, k.chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return &extendedKey{key: sum[:32], chainCode: sum[32:]}
}

func (k *extendedKey) derivePath(path ...uint32) *extendedKey {
	node := k
	for _, i := range path {
		node = node.derive(i)
	}
	return node
}

func (k *extendedKey) publicKey() ed25519.PublicKey {
	return ed25519.NewKeyFromSeed(k.key).Public().(ed25519.PublicKey)
}
