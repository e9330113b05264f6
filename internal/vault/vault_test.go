package vault

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

// Test vector 1 for ed25519 from the SLIP-0010 specification.
func TestMasterKeyVector(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	key, chain := masterKey(seed)

	wantKey := "2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7"
	wantChain := "90046a93de5380a72b5e45010748567d5ea02bbf6522f979e05c0d8d8ca9fffb"
	if hex.EncodeToString(key) != wantKey {
		t.Fatalf("master key = %x, want %s", key, wantKey)
	}
	if hex.EncodeToString(chain) != wantChain {
		t.Fatalf("master chain = %x, want %s", chain, wantChain)
	}
}

func TestDeriveHardenedVector(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	key, chain := masterKey(seed)

	key, chain = deriveHardened(key, chain, 0)
	if got := hex.EncodeToString(key); got != "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3" {
		t.Fatalf("m/0' key = %s", got)
	}

	key, _ = deriveHardened(key, chain, 1)
	if got := hex.EncodeToString(key); got != "b1d0bad404bf35da785a64ca1ac54b2617211d2777696fbffaf208f746ae84f2" {
		t.Fatalf("m/0'/1' key = %s", got)
	}
}

func TestClassifyMnemonic(t *testing.T) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		t.Fatal(err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatal(err)
	}

	c, err := Classify("  " + phrase + "  ")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Kind != KindMnemonic {
		t.Fatalf("kind = %s, want mnemonic", c.Kind)
	}
	if c.Normalized != phrase {
		t.Fatalf("normalized = %q, want trimmed phrase", c.Normalized)
	}
	if len(c.Key) != ed25519.PrivateKeySize {
		t.Fatalf("key length = %d", len(c.Key))
	}
	if c.Address != c.Key.PublicKey() {
		t.Fatal("address does not match derived key")
	}

	// Same phrase must always derive the same address.
	again, err := Classify(phrase)
	if err != nil {
		t.Fatal(err)
	}
	if again.Address != c.Address {
		t.Fatal("derivation is not deterministic")
	}
}

func TestClassifyBase58Key(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}

	c, err := Classify(key.String())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.Kind != KindPrivateKey {
		t.Fatalf("kind = %s, want private_key", c.Kind)
	}
	if !bytes.Equal(c.Key, key) {
		t.Fatal("key mismatch")
	}
	if c.Address != key.PublicKey() {
		t.Fatal("address mismatch")
	}
}

func TestClassifyRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"",
		"    ",
		"not-base58-0OIl",
		"hello world this is not a valid phrase at all no sir",
	} {
		if _, err := Classify(in); err == nil {
			t.Fatalf("Classify(%q) accepted invalid input", in)
		}
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := New(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatal(err)
	}

	secret := "guard vocal lamp sting repair express blue tube dream tone icon fix"
	sealed, err := v.Seal(secret)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sealed, secret) {
		t.Fatal("sealed value leaks plaintext")
	}

	opened, err := v.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if opened != secret {
		t.Fatalf("round trip mismatch: %q", opened)
	}

	// Each seal uses a fresh nonce.
	second, err := v.Seal(secret)
	if err != nil {
		t.Fatal(err)
	}
	if second == sealed {
		t.Fatal("nonces are reused")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	v, err := New(bytes.Repeat([]byte{9}, 32))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := v.Seal("sensitive")
	if err != nil {
		t.Fatal(err)
	}

	raw := []byte(sealed)
	raw[len(raw)-5] ^= 1
	if _, err := v.Open(string(raw)); err == nil {
		t.Fatal("tampered ciphertext accepted")
	}

	other, err := New(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Open(sealed); err == nil {
		t.Fatal("ciphertext opened with wrong key")
	}
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Fatal("short key accepted")
	}
}
