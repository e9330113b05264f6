package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSolPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("ids") != "solana" || q.Get("vs_currencies") != "usd" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"solana":{"usd":142.35}}`))
	}))
	defer srv.Close()

	g := NewCoinGecko(srv.URL)
	p, err := g.SolPrice(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "142.35" {
		t.Fatalf("price = %s", p)
	}
}

func TestPriceUnknownCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewCoinGecko(srv.URL)
	_, ok, err := g.Price(context.Background(), "definitely-not-a-coin")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unknown coin reported as priced")
	}
}

func TestPricesMultiple(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"solana":{"usd":142.35},"bonk":{"usd":0.000021}}`))
	}))
	defer srv.Close()

	g := NewCoinGecko(srv.URL)
	prices, err := g.Prices(context.Background(), []string{"solana", "bonk"})
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d prices", len(prices))
	}
	if prices["bonk"].String() != "0.000021" {
		t.Fatalf("bonk price = %s", prices["bonk"])
	}
}
