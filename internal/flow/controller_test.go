package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/getbits/solbot/internal/market"
	"github.com/getbits/solbot/internal/store"
)

type fakeVault struct{}

func (fakeVault) Seal(plaintext string) (string, error) { return "sealed:" + plaintext, nil }
func (fakeVault) Open(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "sealed:") {
		return "", errors.New("bad ciphertext")
	}
	return strings.TrimPrefix(encoded, "sealed:"), nil
}

type transferCall struct {
	recipient solana.PublicKey
	lamports  uint64
}

type fakeChain struct {
	mu           sync.Mutex
	transfers    []transferCall
	tokenAmounts []uint64
	submitted    [][]byte
	mintDecimals uint8
	transferErr  error
	submitErr    error
}

func (f *fakeChain) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	return f.mintDecimals, nil
}

func (f *fakeChain) TransferSOL(ctx context.Context, key solana.PrivateKey, recipient solana.PublicKey, lamports uint64) (solana.Signature, error) {
	if f.transferErr != nil {
		return solana.Signature{}, f.transferErr
	}
	f.mu.Lock()
	f.transfers = append(f.transfers, transferCall{recipient: recipient, lamports: lamports})
	f.mu.Unlock()
	return solana.Signature{}, nil
}

func (f *fakeChain) TransferToken(ctx context.Context, key solana.PrivateKey, recipient, mint solana.PublicKey, amount uint64, decimals uint8) (solana.Signature, error) {
	f.mu.Lock()
	f.tokenAmounts = append(f.tokenAmounts, amount)
	f.mu.Unlock()
	return solana.Signature{}, nil
}

func (f *fakeChain) SignAndSubmit(ctx context.Context, key solana.PrivateKey, txBytes []byte) (solana.Signature, error) {
	if f.submitErr != nil {
		return solana.Signature{}, f.submitErr
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, txBytes)
	f.mu.Unlock()
	return solana.Signature{}, nil
}

type fakeSwaps struct {
	tokens     map[string]market.Token
	quoteErr   error
	quoteCalls int
	builtWith  []market.Quote
}

func (f *fakeSwaps) FindToken(ctx context.Context, symbol string) (market.Token, bool, error) {
	tok, ok := f.tokens[strings.ToUpper(strings.TrimSpace(symbol))]
	return tok, ok, nil
}

func (f *fakeSwaps) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (market.Quote, error) {
	f.quoteCalls++
	if f.quoteErr != nil {
		return market.Quote{}, f.quoteErr
	}
	return market.Quote{
		InputMint:  inputMint,
		OutputMint: outputMint,
		InAmount:   "1000000000",
		OutAmount:  "42000000",
		Raw:        []byte(`{"quote":"original"}`),
	}, nil
}

func (f *fakeSwaps) BuildSwapTransaction(ctx context.Context, quote market.Quote, userPublicKey string) ([]byte, error) {
	f.builtWith = append(f.builtWith, quote)
	return []byte{9, 9, 9}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	users   map[int64]*store.UserBinding
	records []store.TransactionRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]*store.UserBinding)}
}

func (f *fakeStore) UpsertUser(ctx context.Context, chatID int64, encryptedSecret, publicAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[chatID] = &store.UserBinding{
		ChatID:          chatID,
		EncryptedSecret: encryptedSecret,
		PublicAddress:   publicAddress,
	}
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, chatID int64) (*store.UserBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[chatID], nil
}

func (f *fakeStore) InsertTransaction(ctx context.Context, rec store.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeChain, *fakeSwaps, *fakeStore, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	ch := &fakeChain{mintDecimals: 6}
	sw := &fakeSwaps{tokens: map[string]market.Token{
		"SOL":  {Address: market.WrappedSOLMint, Symbol: "SOL", Name: "Wrapped SOL", Decimals: 9},
		"USDC": {Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	st := newFakeStore()
	ctrl := NewController(NewSessions(time.Minute), fakeVault{}, ch, sw, st)
	return ctrl, ch, sw, st, key
}

func bindWallet(t *testing.T, ctrl *Controller, st *fakeStore, chatID int64, key solana.PrivateKey) {
	t.Helper()
	if err := st.UpsertUser(context.Background(), chatID, "sealed:"+key.String(), key.PublicKey().String()); err != nil {
		t.Fatal(err)
	}
}

func TestImportFlow(t *testing.T) {
	ctrl, _, _, st, key := newTestController(t)
	ctx := context.Background()

	ctrl.StartImport(1)
	if !ctrl.InProgress(1) {
		t.Fatal("import dialog not open")
	}

	prompt, err := ctrl.HandleText(ctx, 1, key.String())
	if err != nil {
		t.Fatal(err)
	}
	if prompt.Kind != PromptImported || prompt.Address != key.PublicKey().String() {
		t.Fatalf("prompt = %+v", prompt)
	}
	if ctrl.InProgress(1) {
		t.Fatal("dialog still open after import")
	}

	u, _ := st.GetUser(ctx, 1)
	if u == nil || u.PublicAddress != key.PublicKey().String() {
		t.Fatalf("binding not stored: %+v", u)
	}
	if !strings.HasPrefix(u.EncryptedSecret, "sealed:") {
		t.Fatal("secret stored unsealed")
	}
}

func TestImportRejectsGarbageAndKeepsDialogOpen(t *testing.T) {
	ctrl, _, _, _, _ := newTestController(t)
	ctx := context.Background()

	ctrl.StartImport(1)
	_, err := ctrl.HandleText(ctx, 1, "definitely not a secret")
	if KindOf(err) != KindInvalidSecret {
		t.Fatalf("err = %v, want invalid_secret", err)
	}
	if !ctrl.InProgress(1) {
		t.Fatal("dialog should stay open for retry")
	}
}

func TestCancelTextResetsDialog(t *testing.T) {
	ctrl, _, _, _, _ := newTestController(t)
	ctx := context.Background()

	ctrl.StartImport(1)
	prompt, err := ctrl.HandleText(ctx, 1, "/cancel")
	if err != nil {
		t.Fatal(err)
	}
	if prompt.Kind != PromptCancelled {
		t.Fatalf("prompt = %+v", prompt)
	}
	if ctrl.InProgress(1) {
		t.Fatal("dialog still open after cancel")
	}
}

func TestBeginSendRequiresWallet(t *testing.T) {
	ctrl, _, _, _, _ := newTestController(t)
	if err := ctrl.BeginSendNative(context.Background(), 1); KindOf(err) != KindNoWallet {
		t.Fatalf("err = %v, want no_wallet", err)
	}
}

func TestTransferFlow(t *testing.T) {
	ctrl, ch, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	recipient, _ := solana.NewRandomPrivateKey()
	recipientAddr := recipient.PublicKey().String()

	if err := ctrl.BeginSendNative(ctx, 1); err != nil {
		t.Fatal(err)
	}
	prompt, err := ctrl.HandleText(ctx, 1, recipientAddr+" 1.5")
	if err != nil {
		t.Fatal(err)
	}
	if prompt.Kind != PromptConfirmTransfer {
		t.Fatalf("prompt = %+v", prompt)
	}
	if prompt.Transfer.Lamports != 1_500_000_000 {
		t.Fatalf("lamports = %d", prompt.Transfer.Lamports)
	}

	receipt, err := ctrl.ConfirmTransfer(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Token != "SOL" || receipt.Recipient != recipientAddr {
		t.Fatalf("receipt = %+v", receipt)
	}
	if len(ch.transfers) != 1 || ch.transfers[0].lamports != 1_500_000_000 {
		t.Fatalf("chain calls = %+v", ch.transfers)
	}
	if len(st.records) != 1 || st.records[0].Kind != store.KindSend {
		t.Fatalf("records = %+v", st.records)
	}

	// The intent is consumed: a second press is stale and has no effect.
	if _, err := ctrl.ConfirmTransfer(ctx, 1); KindOf(err) != KindStale {
		t.Fatalf("second confirm err = %v, want stale", err)
	}
	if len(ch.transfers) != 1 {
		t.Fatal("stale confirm reached the chain")
	}
}

func TestTransferRejectsBadInput(t *testing.T) {
	ctrl, _, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	if err := ctrl.BeginSendNative(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := ctrl.HandleText(ctx, 1, "only-one-field"); KindOf(err) != KindInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}
	if _, err := ctrl.HandleText(ctx, 1, "not-an-address 1"); KindOf(err) != KindInvalidAddress {
		t.Fatalf("err = %v, want invalid_address", err)
	}

	recipient, _ := solana.NewRandomPrivateKey()
	addr := recipient.PublicKey().String()
	if _, err := ctrl.HandleText(ctx, 1, addr+" zero"); KindOf(err) != KindInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}
	if _, err := ctrl.HandleText(ctx, 1, addr+" -3"); KindOf(err) != KindInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}
	if _, err := ctrl.HandleText(ctx, 1, addr+" 0"); KindOf(err) != KindInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}
}

func TestCancelPendingIsTerminal(t *testing.T) {
	ctrl, ch, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	recipient, _ := solana.NewRandomPrivateKey()
	if err := ctrl.BeginSendNative(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.HandleText(ctx, 1, recipient.PublicKey().String()+" 1"); err != nil {
		t.Fatal(err)
	}

	if !ctrl.CancelPending(1) {
		t.Fatal("cancel should consume the pending action")
	}
	if ctrl.CancelPending(1) {
		t.Fatal("second cancel should be stale")
	}
	if _, err := ctrl.ConfirmTransfer(ctx, 1); KindOf(err) != KindStale {
		t.Fatal("confirm after cancel should be stale")
	}
	if len(ch.transfers) != 0 {
		t.Fatal("cancelled transfer reached the chain")
	}
}

func TestTokenTransferResolvesDecimalsAtExecution(t *testing.T) {
	ctrl, ch, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	recipient, _ := solana.NewRandomPrivateKey()
	if err := ctrl.BeginSendToken(ctx, 1); err != nil {
		t.Fatal(err)
	}
	prompt, err := ctrl.HandleText(ctx, 1, recipient.PublicKey().String()+" USDC 2.5")
	if err != nil {
		t.Fatal(err)
	}
	if prompt.Kind != PromptConfirmTokenTransfer || prompt.TokenTransfer.Symbol != "USDC" {
		t.Fatalf("prompt = %+v", prompt)
	}

	if _, err := ctrl.ConfirmTokenTransfer(ctx, 1); err != nil {
		t.Fatal(err)
	}
	// 2.5 at the fake's 6 mint decimals.
	if len(ch.tokenAmounts) != 1 || ch.tokenAmounts[0] != 2_500_000 {
		t.Fatalf("token amounts = %v", ch.tokenAmounts)
	}
}

func TestSwapConfirmSubmitsStoredQuoteVerbatim(t *testing.T) {
	ctrl, ch, sw, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	if err := ctrl.BeginSwap(ctx, 1); err != nil {
		t.Fatal(err)
	}
	prompt, err := ctrl.HandleText(ctx, 1, "SOL USDC 1")
	if err != nil {
		t.Fatal(err)
	}
	if prompt.Kind != PromptConfirmSwap {
		t.Fatalf("prompt = %+v", prompt)
	}
	if prompt.Swap.ExpectedOut.String() != "42" {
		t.Fatalf("expected out = %s", prompt.Swap.ExpectedOut)
	}
	if sw.quoteCalls != 1 {
		t.Fatalf("quote calls = %d", sw.quoteCalls)
	}

	receipt, err := ctrl.ConfirmSwap(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.OutToken != "USDC" {
		t.Fatalf("receipt = %+v", receipt)
	}

	// Confirmation must not re-quote and must echo the captured quote.
	if sw.quoteCalls != 1 {
		t.Fatalf("confirm re-quoted: %d calls", sw.quoteCalls)
	}
	if len(sw.builtWith) != 1 || string(sw.builtWith[0].Raw) != `{"quote":"original"}` {
		t.Fatalf("built with %+v", sw.builtWith)
	}
	if len(ch.submitted) != 1 {
		t.Fatal("swap transaction not submitted")
	}
	if len(st.records) != 1 || st.records[0].Kind != store.KindSwap {
		t.Fatalf("records = %+v", st.records)
	}
}

func TestMismatchedConfirmDoesNotConsumePending(t *testing.T) {
	ctrl, _, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	recipient, _ := solana.NewRandomPrivateKey()
	if err := ctrl.BeginSendNative(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.HandleText(ctx, 1, recipient.PublicKey().String()+" 1"); err != nil {
		t.Fatal(err)
	}

	if _, err := ctrl.ConfirmSwap(ctx, 1); KindOf(err) != KindStale {
		t.Fatal("swap confirm against a transfer should be stale")
	}
	if _, err := ctrl.ConfirmTransfer(ctx, 1); err != nil {
		t.Fatalf("transfer should survive mismatched confirm: %v", err)
	}
}

func TestGatewayFailureResetsSession(t *testing.T) {
	ctrl, ch, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)
	ch.transferErr = errors.New("rpc down")

	recipient, _ := solana.NewRandomPrivateKey()
	if err := ctrl.BeginSendNative(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.HandleText(ctx, 1, recipient.PublicKey().String()+" 1"); err != nil {
		t.Fatal(err)
	}

	if _, err := ctrl.ConfirmTransfer(ctx, 1); KindOf(err) != KindGateway {
		t.Fatalf("err = %v, want gateway", err)
	}
	// The failed intent is gone; a retry press is stale, not a resubmission.
	if _, err := ctrl.ConfirmTransfer(ctx, 1); KindOf(err) != KindStale {
		t.Fatal("failed intent should not be retryable")
	}
	if len(st.records) != 0 {
		t.Fatal("failed transfer was recorded")
	}
}

func TestSwapCaptureErrors(t *testing.T) {
	ctrl, _, sw, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	if err := ctrl.BeginSwap(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := ctrl.HandleText(ctx, 1, "SOL USDC"); KindOf(err) != KindInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}
	if _, err := ctrl.HandleText(ctx, 1, "SOL USDC nope"); KindOf(err) != KindInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}

	sw.quoteErr = errors.New("aggregator down")
	if _, err := ctrl.HandleText(ctx, 1, "SOL USDC 1"); KindOf(err) != KindGateway {
		t.Fatalf("err = %v, want gateway", err)
	}
	// The dialog stays open so the user can retry once the aggregator is back.
	if !ctrl.InProgress(1) {
		t.Fatal("swap dialog closed by a quote failure")
	}
}

func TestConfirmAfterSessionExpiryIsStale(t *testing.T) {
	ctrl, ch, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	current := time.Now()
	ctrl.sessions.now = func() time.Time { return current }

	recipient, _ := solana.NewRandomPrivateKey()
	if err := ctrl.BeginSendNative(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.HandleText(ctx, 1, recipient.PublicKey().String()+" 1"); err != nil {
		t.Fatal(err)
	}

	current = current.Add(2 * time.Minute)

	if _, err := ctrl.ConfirmTransfer(ctx, 1); KindOf(err) != KindStale {
		t.Fatalf("err = %v, want stale", err)
	}
	if len(ch.transfers) != 0 {
		t.Fatal("expired confirm reached the chain")
	}
	if len(st.records) != 0 {
		t.Fatal("expired confirm was recorded")
	}
}

func TestUnknownSwapTokenRejected(t *testing.T) {
	ctrl, _, _, st, key := newTestController(t)
	ctx := context.Background()
	bindWallet(t, ctrl, st, 1, key)

	if err := ctrl.BeginSwap(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.HandleText(ctx, 1, "SOL NOPE 1"); KindOf(err) != KindUnknownToken {
		t.Fatalf("err = %v, want unknown_token", err)
	}
}

func TestTinyAmountBelowOneLamportRejected(t *testing.T) {
	if _, ok := toBaseUnits(decimal.RequireFromString("0.0000000001"), 9); ok {
		t.Fatal("sub-lamport amount accepted")
	}
	if v, ok := toBaseUnits(decimal.RequireFromString("0.000000001"), 9); !ok || v != 1 {
		t.Fatalf("one lamport = %d ok=%v", v, ok)
	}
}
