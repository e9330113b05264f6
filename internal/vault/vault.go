// Package vault classifies wallet secrets, derives keypairs, and encrypts
// secrets for storage. Plaintext secrets never leave this package except as
// the derived signing key handed to the chain gateway.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

// SecretKind tags how an imported secret was recognised.
type SecretKind string

const (
	// KindMnemonic is a BIP-39 seed phrase.
	KindMnemonic SecretKind = "mnemonic"
	// KindPrivateKey is a base58-encoded 64-byte ed25519 private key.
	KindPrivateKey SecretKind = "private_key"
)

// ErrInvalidSecret is returned when input is neither a valid seed phrase nor
// a base58 private key.
var ErrInvalidSecret = fmt.Errorf("input is not a valid seed phrase or base58 private key")

// Classified is the result of recognising and resolving a secret.
type Classified struct {
	Kind SecretKind
	// Normalized is the canonical form persisted after encryption:
	// the trimmed phrase for mnemonics, the base58 key otherwise.
	Normalized string
	Key        solana.PrivateKey
	Address    solana.PublicKey
}

// Vault seals and opens secrets with a process-wide AES-256-GCM key.
type Vault struct {
	key []byte
}

// New builds a Vault. The key must be 32 bytes.
func New(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("vault key must be 32 bytes, got %d", len(key))
	}
	v := &Vault{key: make([]byte, 32)}
	copy(v.key, key)
	return v, nil
}

// Classify recognises raw input as a seed phrase or a base58 private key and
// resolves the signing keypair. Inner whitespace marks a phrase; a single
// token is treated as a key.
func Classify(raw string) (Classified, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Classified{}, ErrInvalidSecret
	}

	if words := strings.Fields(trimmed); len(words) > 1 {
		phrase := strings.Join(words, " ")
		if !bip39.IsMnemonicValid(phrase) {
			return Classified{}, ErrInvalidSecret
		}
		key, err := deriveFromMnemonic(phrase)
		if err != nil {
			return Classified{}, ErrInvalidSecret
		}
		return Classified{
			Kind:       KindMnemonic,
			Normalized: phrase,
			Key:        key,
			Address:    key.PublicKey(),
		}, nil
	}

	key, err := solana.PrivateKeyFromBase58(trimmed)
	if err != nil || len(key) != ed25519.PrivateKeySize {
		return Classified{}, ErrInvalidSecret
	}
	return Classified{
		Kind:       KindPrivateKey,
		Normalized: trimmed,
		Key:        key,
		Address:    key.PublicKey(),
	}, nil
}

// Resolve rebuilds the signing key from a previously normalized secret.
func Resolve(normalized string) (solana.PrivateKey, error) {
	c, err := Classify(normalized)
	if err != nil {
		return nil, err
	}
	return c.Key, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (v *Vault) Open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plaintext), nil
}

// solanaDerivationPath is the standard wallet path m/44'/501'/0'/0'.
var solanaDerivationPath = []uint32{44, 501, 0, 0}

func deriveFromMnemonic(phrase string) (solana.PrivateKey, error) {
	seed := bip39.NewSeed(phrase, "")
	key, chainCode := masterKey(seed)
	for _, step := range solanaDerivationPath {
		key, chainCode = deriveHardened(key, chainCode, step)
	}
	priv := ed25519.NewKeyFromSeed(key)
	return solana.PrivateKey(priv), nil
}

// masterKey implements the SLIP-0010 ed25519 master key generation.
func masterKey(seed []byte) (key, chainCode []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

// deriveHardened performs one hardened SLIP-0010 child derivation step.
// ed25519 supports hardened derivation only.
func deriveHardened(key, chainCode []byte, index uint32) (childKey, childChain []byte) {
	data := make([]byte, 0, 1+len(key)+4)
	data = append(data, 0x00)
	data = append(data, key...)
	var ser [4]byte
	binary.BigEndian.PutUint32(ser[:], index|0x80000000)
	data = append(data, ser[:]...)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}
