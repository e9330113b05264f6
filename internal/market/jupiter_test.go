package market

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestTokensCachesList(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[
			{"address":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","symbol":"USDC","name":"USD Coin","decimals":6},
			{"address":"So11111111111111111111111111111111111111112","symbol":"SOL","name":"Wrapped SOL","decimals":9}
		]`))
	}))
	defer srv.Close()

	j := NewJupiter("http://unused", srv.URL, 50)

	list, err := j.Tokens(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d tokens", len(list))
	}

	if _, err := j.Tokens(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("token list fetched %d times, want cached second read", calls.Load())
	}
}

func TestFindTokenCaseInsensitive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"address":"mint1","symbol":"BonK","name":"Bonk","decimals":5}]`))
	}))
	defer srv.Close()

	j := NewJupiter("http://unused", srv.URL, 50)

	tok, found, err := j.FindToken(context.Background(), " bonk ")
	if err != nil {
		t.Fatal(err)
	}
	if !found || tok.Address != "mint1" || tok.Decimals != 5 {
		t.Fatalf("got %+v found=%v", tok, found)
	}

	if _, found, _ := j.FindToken(context.Background(), "nope"); found {
		t.Fatal("unknown symbol reported as found")
	}
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("inputMint") != "inMint" || q.Get("outputMint") != "outMint" {
			t.Errorf("unexpected mints: %s", r.URL.RawQuery)
		}
		if q.Get("amount") != "1000000000" || q.Get("slippageBps") != "50" {
			t.Errorf("unexpected amount/slippage: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"inputMint":"inMint","outputMint":"outMint","inAmount":"1000000000","outAmount":"42000000","routePlan":[{"percent":100}]}`))
	}))
	defer srv.Close()

	j := NewJupiter(srv.URL, "http://unused", 50)

	quote, err := j.GetQuote(context.Background(), "inMint", "outMint", 1_000_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if quote.OutAmount != "42000000" {
		t.Fatalf("out amount = %s", quote.OutAmount)
	}
	if len(quote.Raw) == 0 {
		t.Fatal("raw quote not preserved")
	}
}

func TestBuildSwapTransactionEchoesQuote(t *testing.T) {
	rawQuote := json.RawMessage(`{"inputMint":"a","outputMint":"b","inAmount":"1","outAmount":"2","routePlan":[]}`)
	txBytes := []byte{1, 2, 3, 4}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			QuoteResponse    json.RawMessage `json:"quoteResponse"`
			UserPublicKey    string          `json:"userPublicKey"`
			WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode swap request: %v", err)
		}
		if string(req.QuoteResponse) != string(rawQuote) {
			t.Errorf("quote not echoed verbatim: %s", req.QuoteResponse)
		}
		if req.UserPublicKey != "wallet1" || !req.WrapAndUnwrapSol {
			t.Errorf("unexpected swap request: %+v", req)
		}
		resp := map[string]string{"swapTransaction": base64.StdEncoding.EncodeToString(txBytes)}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	j := NewJupiter(srv.URL, "http://unused", 50)

	got, err := j.BuildSwapTransaction(context.Background(), Quote{Raw: rawQuote}, "wallet1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(txBytes) {
		t.Fatalf("tx bytes = %v", got)
	}
}

func TestGetQuoteNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"inputMint":"a","outputMint":"b"}`))
	}))
	defer srv.Close()

	j := NewJupiter(srv.URL, "http://unused", 50)
	if _, err := j.GetQuote(context.Background(), "a", "b", 1); err == nil {
		t.Fatal("quote without route accepted")
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	j := NewJupiter("http://unused", srv.URL, 50)
	if _, err := j.Tokens(context.Background()); err != nil {
		t.Fatalf("retry did not recover: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}
