package identity

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/cryptarena/arenad/internal/domain"
)

// Wallet wraps a secp256k1 private key. The operator wallet signs nothing on
// chain; its address is the admin identity and the default price setter.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	identity   domain.Identity
}

// NewWallet creates a Wallet from a hex-encoded private key.
func NewWallet(privateKeyHex string) (*Wallet, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid private key: %w", err)
	}
	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)
	return &Wallet{
		privateKey: pk,
		identity:   domain.NormalizeIdentity(addr.Hex()),
	}, nil
}

// Identity returns the wallet's address in canonical form.
func (w *Wallet) Identity() domain.Identity {
	return w.identity
}

// Sign produces a 65-byte personal-sign signature over message, hex encoded
// with a 0x prefix. The recovery byte is normalized to {27, 28} so browser
// wallets and this implementation produce interchangeable signatures.
func (w *Wallet) Sign(message []byte) (string, error) {
	sig, err := ethcrypto.Sign(personalDigest(message), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("identity: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// personalDigest hashes message per EIP-191 ("\x19Ethereum Signed Message").
func personalDigest(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return ethcrypto.Keccak256([]byte(prefix), message)
}

// Recover returns the identity that produced the given personal-sign
// signature over message.
func Recover(message []byte, sigHex string) (domain.Identity, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("identity: signature is not valid hex: %w", err)
	}
	if len(raw) != 65 {
		return "", fmt.Errorf("identity: expected 65-byte signature, got %d bytes", len(raw))
	}

	// ethcrypto wants the recovery byte in {0, 1}.
	sig := make([]byte, 65)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(personalDigest(message), sig)
	if err != nil {
		return "", fmt.Errorf("identity: recovering signer: %w", err)
	}
	return domain.NormalizeIdentity(ethcrypto.PubkeyToAddress(*pub).Hex()), nil
}
