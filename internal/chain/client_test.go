package chain

import (
	"encoding/json"
	"testing"
)

func TestValidAddress(t *testing.T) {
	if !ValidAddress("So11111111111111111111111111111111111111112") {
		t.Fatal("wrapped SOL mint rejected")
	}
	for _, in := range []string{"", "abc", "0OIl-not-base58", "So1111111111111111111111111111111111111111"} {
		if ValidAddress(in) {
			t.Fatalf("ValidAddress(%q) accepted invalid input", in)
		}
	}
}

func TestParsedTokenAccountDecoding(t *testing.T) {
	raw := []byte(`{
		"parsed": {
			"info": {
				"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"tokenAmount": {
					"amount": "1500000",
					"decimals": 6,
					"uiAmountString": "1.5"
				}
			},
			"type": "account"
		},
		"program": "spl-token"
	}`)

	var parsed parsedTokenAccount
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatal(err)
	}
	info := parsed.Parsed.Info
	if info.Mint != "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" {
		t.Fatalf("mint = %s", info.Mint)
	}
	if info.TokenAmount.Amount != "1500000" || info.TokenAmount.Decimals != 6 {
		t.Fatalf("token amount = %+v", info.TokenAmount)
	}
	if info.TokenAmount.UIAmountString != "1.5" {
		t.Fatalf("ui amount = %s", info.TokenAmount.UIAmountString)
	}
}
