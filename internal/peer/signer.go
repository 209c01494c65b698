package peer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer proves control of an address during the handshake.
type Signer interface {
	Address() common.Address
	// SignChallenge returns a 0x-prefixed personal_sign signature of challenge.
	SignChallenge(challenge string) (string, error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner loads a hex private key. An empty key generates a throwaway one.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	if hexKey == "" {
		key, err = crypto.GenerateKey()
	} else {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	}
	if err != nil {
		return nil, fmt.Errorf("peer: load key: %w", err)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the signer's address.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignChallenge signs the EIP-191 text hash of challenge. V is 27 or 28.
func (s *KeySigner) SignChallenge(challenge string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(challenge)), s.key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
