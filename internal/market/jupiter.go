package market

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/getbits/solbot/core/logger"
)

// WrappedSOLMint is the mint address used when swapping from or to SOL.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

const tokenCacheTTL = 10 * time.Minute

// Token is one entry of the aggregator's token list.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// Quote is a priced swap route. Raw holds the aggregator's response verbatim
// so the swap request can echo it back unchanged.
type Quote struct {
	InputMint  string
	OutputMint string
	InAmount   string
	OutAmount  string
	Raw        json.RawMessage
}

// Jupiter is the swap aggregator gateway.
type Jupiter struct {
	apiURL       string
	tokenListURL string
	slippageBps  int
	http         *client

	mu      sync.Mutex
	tokens  []Token
	cacheAt time.Time
}

// NewJupiter builds the gateway around the configured endpoints.
func NewJupiter(apiURL, tokenListURL string, slippageBps int) *Jupiter {
	return &Jupiter{
		apiURL:       strings.TrimRight(apiURL, "/"),
		tokenListURL: tokenListURL,
		slippageBps:  slippageBps,
		http:         newClient(defaultTimeout, defaultRetries),
	}
}

// Tokens returns the token list, cached for a short period.
func (j *Jupiter) Tokens(ctx context.Context) ([]Token, error) {
	j.mu.Lock()
	if j.tokens != nil && time.Since(j.cacheAt) < tokenCacheTTL {
		cached := j.tokens
		j.mu.Unlock()
		return cached, nil
	}
	j.mu.Unlock()

	var list []Token
	if err := j.http.getJSON(ctx, j.tokenListURL, &list); err != nil {
		return nil, fmt.Errorf("fetch token list: %w", err)
	}

	j.mu.Lock()
	j.tokens = list
	j.cacheAt = time.Now()
	j.mu.Unlock()

	logger.Debug(ctx, "market", "tokens.refresh",
		slog.Int("count", len(list)),
	)
	return list, nil
}

// FindToken resolves a symbol (case-insensitive) against the token list.
func (j *Jupiter) FindToken(ctx context.Context, symbol string) (Token, bool, error) {
	list, err := j.Tokens(ctx)
	if err != nil {
		return Token{}, false, err
	}
	want := strings.ToUpper(strings.TrimSpace(symbol))
	for _, t := range list {
		if strings.ToUpper(t.Symbol) == want {
			return t, true, nil
		}
	}
	return Token{}, false, nil
}

type quoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// GetQuote asks the aggregator to price a swap of amount base units.
func (j *Jupiter) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", fmt.Sprintf("%d", amount))
	q.Set("slippageBps", fmt.Sprintf("%d", j.slippageBps))

	var raw json.RawMessage
	if err := j.http.getJSON(ctx, j.apiURL+"/quote?"+q.Encode(), &raw); err != nil {
		return Quote{}, fmt.Errorf("fetch quote: %w", err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if parsed.OutAmount == "" {
		return Quote{}, fmt.Errorf("quote has no route")
	}

	return Quote{
		InputMint:  parsed.InputMint,
		OutputMint: parsed.OutputMint,
		InAmount:   parsed.InAmount,
		OutAmount:  parsed.OutAmount,
		Raw:        raw,
	}, nil
}

type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction exchanges a quote for an unsigned serialized
// transaction. The stored quote is echoed back verbatim.
func (j *Jupiter) BuildSwapTransaction(ctx context.Context, quote Quote, userPublicKey string) ([]byte, error) {
	req := swapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	}

	var resp swapResponse
	if err := j.http.postJSON(ctx, j.apiURL+"/swap", req, &resp); err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response missing transaction")
	}

	txBytes, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	return txBytes, nil
}
