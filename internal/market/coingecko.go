package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// CoinGecko resolves USD prices through the simple-price API.
type CoinGecko struct {
	baseURL string
	http    *client
}

// NewCoinGecko builds the price gateway.
func NewCoinGecko(baseURL string) *CoinGecko {
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newClient(defaultTimeout, defaultRetries),
	}
}

// Prices returns USD prices keyed by coin id. Unknown ids are absent from
// the result rather than an error.
func (g *CoinGecko) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	var raw map[string]map[string]decimal.Decimal
	if err := g.http.getJSON(ctx, g.baseURL+"/simple/price?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(raw))
	for id, quotes := range raw {
		if usd, ok := quotes["usd"]; ok {
			out[id] = usd
		}
	}
	return out, nil
}

// Price returns the USD price of a single coin id, reporting whether the
// oracle knows the coin.
func (g *CoinGecko) Price(ctx context.Context, id string) (decimal.Decimal, bool, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	prices, err := g.Prices(ctx, []string{id})
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	p, ok := prices[id]
	return p, ok, nil
}

// SolPrice returns the USD price of SOL.
func (g *CoinGecko) SolPrice(ctx context.Context) (decimal.Decimal, error) {
	p, ok, err := g.Price(ctx, "solana")
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("oracle returned no price for solana")
	}
	return p, nil
}
