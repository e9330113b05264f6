// Package flow owns the per-chat conversation state machine: it turns free
// text and button presses into exactly one completed, cancelled, or expired
// action per dialog.
package flow

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/getbits/solbot/core/logger"
	"github.com/getbits/solbot/internal/chain"
	"github.com/getbits/solbot/internal/market"
	"github.com/getbits/solbot/internal/store"
	"github.com/getbits/solbot/internal/vault"
)

const solDecimals = 9

// ChainGateway is the ledger surface the controller needs.
type ChainGateway interface {
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
	TransferSOL(ctx context.Context, key solana.PrivateKey, recipient solana.PublicKey, lamports uint64) (solana.Signature, error)
	TransferToken(ctx context.Context, key solana.PrivateKey, recipient, mint solana.PublicKey, amount uint64, decimals uint8) (solana.Signature, error)
	SignAndSubmit(ctx context.Context, key solana.PrivateKey, txBytes []byte) (solana.Signature, error)
}

// SwapGateway prices and builds swaps.
type SwapGateway interface {
	FindToken(ctx context.Context, symbol string) (market.Token, bool, error)
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (market.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote market.Quote, userPublicKey string) ([]byte, error)
}

// SecretVault seals and opens wallet secrets.
type SecretVault interface {
	Seal(plaintext string) (string, error)
	Open(encoded string) (string, error)
}

// RecordStore persists wallet bindings and executed actions.
type RecordStore interface {
	UpsertUser(ctx context.Context, chatID int64, encryptedSecret, publicAddress string) error
	GetUser(ctx context.Context, chatID int64) (*store.UserBinding, error)
	InsertTransaction(ctx context.Context, rec store.TransactionRecord) error
}

// PromptKind tags what HandleText produced.
type PromptKind int

const (
	// PromptNone means the text was consumed with nothing to ask.
	PromptNone PromptKind = iota
	// PromptCancelled means the dialog was reset by /cancel.
	PromptCancelled
	// PromptImported carries the address of a freshly bound wallet.
	PromptImported
	// PromptConfirmTransfer asks to confirm a native transfer.
	PromptConfirmTransfer
	// PromptConfirmTokenTransfer asks to confirm an SPL transfer.
	PromptConfirmTokenTransfer
	// PromptConfirmSwap asks to confirm a swap.
	PromptConfirmSwap
)

// Prompt is the controller's answer to a free-text message.
type Prompt struct {
	Kind          PromptKind
	Address       string
	Transfer      *TransferIntent
	TokenTransfer *TokenTransferIntent
	Swap          *SwapIntent
}

// Receipt reports one executed action.
type Receipt struct {
	Signature string
	Amount    decimal.Decimal
	Token     string
	Recipient string
	OutAmount decimal.Decimal
	OutToken  string
}

// Controller multiplexes per-chat dialogs over the injected gateways.
type Controller struct {
	sessions *Sessions
	vault    SecretVault
	chain    ChainGateway
	swaps    SwapGateway
	store    RecordStore
	log      *slog.Logger
}

// NewController wires a controller.
func NewController(sessions *Sessions, v SecretVault, ch ChainGateway, sw SwapGateway, st RecordStore) *Controller {
	return &Controller{
		sessions: sessions,
		vault:    v,
		chain:    ch,
		swaps:    sw,
		store:    st,
		log:      logger.Component("flow"),
	}
}

// InProgress reports whether the chat has a dialog step awaiting text.
func (c *Controller) InProgress(chatID int64) bool {
	return c.sessions.InProgress(chatID)
}

// Sessions exposes the session store for lifecycle maintenance.
func (c *Controller) Sessions() *Sessions {
	return c.sessions
}

// StartImport opens the import dialog; the next message is treated as a secret.
func (c *Controller) StartImport(chatID int64) {
	c.sessions.SetMode(chatID, ModeAwaitingSecret)
}

// BeginSendNative opens the SOL transfer dialog. The chat must have a wallet.
func (c *Controller) BeginSendNative(ctx context.Context, chatID int64) error {
	if err := c.requireWallet(ctx, chatID); err != nil {
		return err
	}
	c.sessions.SetMode(chatID, ModeSendingNative)
	return nil
}

// BeginSendToken opens the SPL transfer dialog. The chat must have a wallet.
func (c *Controller) BeginSendToken(ctx context.Context, chatID int64) error {
	if err := c.requireWallet(ctx, chatID); err != nil {
		return err
	}
	c.sessions.SetMode(chatID, ModeSendingToken)
	return nil
}

// BeginSwap opens the swap dialog. The chat must have a wallet.
func (c *Controller) BeginSwap(ctx context.Context, chatID int64) error {
	if err := c.requireWallet(ctx, chatID); err != nil {
		return err
	}
	c.sessions.SetMode(chatID, ModeSwapping)
	return nil
}

// Cancel resets the chat's dialog and reports whether anything was active.
func (c *Controller) Cancel(chatID int64) bool {
	return c.sessions.Reset(chatID)
}

// HandleText consumes a free-text message for a chat with an open dialog.
func (c *Controller) HandleText(ctx context.Context, chatID int64, text string) (Prompt, error) {
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, "/cancel") {
		c.sessions.Reset(chatID)
		return Prompt{Kind: PromptCancelled}, nil
	}

	switch c.sessions.Mode(chatID) {
	case ModeAwaitingSecret:
		return c.completeImport(ctx, chatID, trimmed)
	case ModeSendingNative:
		return c.captureTransfer(ctx, chatID, trimmed)
	case ModeSendingToken:
		return c.captureTokenTransfer(ctx, chatID, trimmed)
	case ModeSwapping:
		return c.captureSwap(ctx, chatID, trimmed)
	default:
		return Prompt{Kind: PromptNone}, nil
	}
}

func (c *Controller) completeImport(ctx context.Context, chatID int64, raw string) (Prompt, error) {
	classified, err := vault.Classify(raw)
	if err != nil {
		// Leave the dialog open so the user can retry.
		return Prompt{}, Wrap(KindInvalidSecret, "unrecognized secret", err)
	}

	sealed, err := c.vault.Seal(classified.Normalized)
	if err != nil {
		c.sessions.Reset(chatID)
		return Prompt{}, Wrap(KindGateway, "seal secret", err)
	}
	if err := c.store.UpsertUser(ctx, chatID, sealed, classified.Address.String()); err != nil {
		c.sessions.Reset(chatID)
		return Prompt{}, Wrap(KindGateway, "bind wallet", err)
	}

	c.sessions.Reset(chatID)
	c.log.InfoContext(ctx, "wallet imported",
		slog.String("event", "flow.import"),
		slog.Int64("chat_id", chatID),
		slog.String("kind", string(classified.Kind)),
		slog.String("address", classified.Address.String()),
	)
	return Prompt{Kind: PromptImported, Address: classified.Address.String()}, nil
}

func (c *Controller) captureTransfer(ctx context.Context, chatID int64, text string) (Prompt, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Prompt{}, E(KindInvalidInput, "expected: <recipient> <amount>")
	}
	recipient, rawAmount := fields[0], fields[1]

	if !chain.ValidAddress(recipient) {
		return Prompt{}, E(KindInvalidAddress, "recipient is not a valid address")
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return Prompt{}, err
	}
	lamports, ok := toBaseUnits(amount, solDecimals)
	if !ok {
		return Prompt{}, E(KindInvalidInput, "amount out of range")
	}

	intent := &TransferIntent{Recipient: recipient, Amount: amount, Lamports: lamports}
	c.sessions.SetPending(chatID, intent)
	return Prompt{Kind: PromptConfirmTransfer, Transfer: intent}, nil
}

func (c *Controller) captureTokenTransfer(ctx context.Context, chatID int64, text string) (Prompt, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return Prompt{}, E(KindInvalidInput, "expected: <recipient> <token> <amount>")
	}
	recipient, rawToken, rawAmount := fields[0], fields[1], fields[2]

	if !chain.ValidAddress(recipient) {
		return Prompt{}, E(KindInvalidAddress, "recipient is not a valid address")
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return Prompt{}, err
	}

	mint := rawToken
	symbol := rawToken
	if !chain.ValidAddress(rawToken) {
		tok, found, err := c.swaps.FindToken(ctx, rawToken)
		if err != nil {
			return Prompt{}, Wrap(KindGateway, "resolve token", err)
		}
		if !found {
			return Prompt{}, E(KindUnknownToken, "token not found: "+rawToken)
		}
		mint, symbol = tok.Address, tok.Symbol
	}

	intent := &TokenTransferIntent{Recipient: recipient, Mint: mint, Symbol: symbol, Amount: amount}
	c.sessions.SetPending(chatID, intent)
	return Prompt{Kind: PromptConfirmTokenTransfer, TokenTransfer: intent}, nil
}

func (c *Controller) captureSwap(ctx context.Context, chatID int64, text string) (Prompt, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return Prompt{}, E(KindInvalidInput, "expected: <from> <to> <amount>")
	}
	rawFrom, rawTo, rawAmount := fields[0], fields[1], fields[2]

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return Prompt{}, err
	}

	from, found, err := c.swaps.FindToken(ctx, rawFrom)
	if err != nil {
		return Prompt{}, Wrap(KindGateway, "resolve token", err)
	}
	if !found {
		return Prompt{}, E(KindUnknownToken, "token not found: "+rawFrom)
	}
	to, found, err := c.swaps.FindToken(ctx, rawTo)
	if err != nil {
		return Prompt{}, Wrap(KindGateway, "resolve token", err)
	}
	if !found {
		return Prompt{}, E(KindUnknownToken, "token not found: "+rawTo)
	}

	amountBase, ok := toBaseUnits(amount, int32(from.Decimals))
	if !ok {
		return Prompt{}, E(KindInvalidInput, "amount out of range")
	}

	quote, err := c.swaps.GetQuote(ctx, from.Address, to.Address, amountBase)
	if err != nil {
		return Prompt{}, Wrap(KindGateway, "fetch quote", err)
	}
	expectedOut, err := fromBaseUnits(quote.OutAmount, int32(to.Decimals))
	if err != nil {
		return Prompt{}, Wrap(KindGateway, "decode quote amount", err)
	}

	intent := &SwapIntent{
		From:        from,
		To:          to,
		Amount:      amount,
		AmountBase:  amountBase,
		Quote:       quote,
		ExpectedOut: expectedOut,
	}
	c.sessions.SetPending(chatID, intent)
	return Prompt{Kind: PromptConfirmSwap, Swap: intent}, nil
}

// ConfirmTransfer executes the captured SOL transfer exactly as quoted.
func (c *Controller) ConfirmTransfer(ctx context.Context, chatID int64) (Receipt, error) {
	p, ok := c.sessions.TakePendingIf(chatID, func(p PendingAction) bool {
		_, match := p.(*TransferIntent)
		return match
	})
	if !ok {
		return Receipt{}, E(KindStale, "no pending transfer")
	}
	intent := p.(*TransferIntent)

	key, err := c.signingKey(ctx, chatID)
	if err != nil {
		return Receipt{}, err
	}
	recipient, perr := solana.PublicKeyFromBase58(intent.Recipient)
	if perr != nil {
		return Receipt{}, Wrap(KindInvalidAddress, "recipient", perr)
	}

	sig, err2 := c.chain.TransferSOL(ctx, key, recipient, intent.Lamports)
	if err2 != nil {
		return Receipt{}, Wrap(KindGateway, "transfer failed", err2)
	}

	c.record(ctx, store.TransactionRecord{
		ChatID:    chatID,
		Kind:      store.KindSend,
		Signature: sig.String(),
		Amount:    intent.Amount,
		Token:     "SOL",
		Recipient: nullString(intent.Recipient),
	})
	return Receipt{
		Signature: sig.String(),
		Amount:    intent.Amount,
		Token:     "SOL",
		Recipient: intent.Recipient,
	}, nil
}

// ConfirmTokenTransfer executes the captured SPL transfer.
func (c *Controller) ConfirmTokenTransfer(ctx context.Context, chatID int64) (Receipt, error) {
	p, ok := c.sessions.TakePendingIf(chatID, func(p PendingAction) bool {
		_, match := p.(*TokenTransferIntent)
		return match
	})
	if !ok {
		return Receipt{}, E(KindStale, "no pending token transfer")
	}
	intent := p.(*TokenTransferIntent)

	key, err := c.signingKey(ctx, chatID)
	if err != nil {
		return Receipt{}, err
	}
	recipient, perr := solana.PublicKeyFromBase58(intent.Recipient)
	if perr != nil {
		return Receipt{}, Wrap(KindInvalidAddress, "recipient", perr)
	}
	mint, perr := solana.PublicKeyFromBase58(intent.Mint)
	if perr != nil {
		return Receipt{}, Wrap(KindInvalidAddress, "mint", perr)
	}

	decimals, derr := c.chain.MintDecimals(ctx, mint)
	if derr != nil {
		return Receipt{}, Wrap(KindGateway, "resolve mint decimals", derr)
	}
	amountBase, ok := toBaseUnits(intent.Amount, int32(decimals))
	if !ok {
		return Receipt{}, E(KindInvalidInput, "amount out of range for token")
	}

	sig, terr := c.chain.TransferToken(ctx, key, recipient, mint, amountBase, decimals)
	if terr != nil {
		return Receipt{}, Wrap(KindGateway, "token transfer failed", terr)
	}

	c.record(ctx, store.TransactionRecord{
		ChatID:    chatID,
		Kind:      store.KindSend,
		Signature: sig.String(),
		Amount:    intent.Amount,
		Token:     intent.Symbol,
		Recipient: nullString(intent.Recipient),
	})
	return Receipt{
		Signature: sig.String(),
		Amount:    intent.Amount,
		Token:     intent.Symbol,
		Recipient: intent.Recipient,
	}, nil
}

// ConfirmSwap executes the captured swap by submitting the stored quote.
func (c *Controller) ConfirmSwap(ctx context.Context, chatID int64) (Receipt, error) {
	p, ok := c.sessions.TakePendingIf(chatID, func(p PendingAction) bool {
		_, match := p.(*SwapIntent)
		return match
	})
	if !ok {
		return Receipt{}, E(KindStale, "no pending swap")
	}
	intent := p.(*SwapIntent)

	key, err := c.signingKey(ctx, chatID)
	if err != nil {
		return Receipt{}, err
	}

	txBytes, berr := c.swaps.BuildSwapTransaction(ctx, intent.Quote, key.PublicKey().String())
	if berr != nil {
		return Receipt{}, Wrap(KindGateway, "build swap", berr)
	}
	sig, serr := c.chain.SignAndSubmit(ctx, key, txBytes)
	if serr != nil {
		return Receipt{}, Wrap(KindGateway, "swap failed", serr)
	}

	c.record(ctx, store.TransactionRecord{
		ChatID:    chatID,
		Kind:      store.KindSwap,
		Signature: sig.String(),
		Amount:    intent.Amount,
		Token:     intent.From.Symbol + "->" + intent.To.Symbol,
	})
	return Receipt{
		Signature: sig.String(),
		Amount:    intent.Amount,
		Token:     intent.From.Symbol,
		OutAmount: intent.ExpectedOut,
		OutToken:  intent.To.Symbol,
	}, nil
}

// CancelPending drops the pending action. A false return means the button was
// stale: there was nothing left to cancel.
func (c *Controller) CancelPending(chatID int64) bool {
	_, ok := c.sessions.TakePending(chatID)
	return ok
}

// WalletAddress returns the bound wallet address for a chat.
func (c *Controller) WalletAddress(ctx context.Context, chatID int64) (string, error) {
	u, err := c.store.GetUser(ctx, chatID)
	if err != nil {
		return "", Wrap(KindGateway, "load wallet", err)
	}
	if u == nil {
		return "", E(KindNoWallet, "no wallet imported")
	}
	return u.PublicAddress, nil
}

func (c *Controller) requireWallet(ctx context.Context, chatID int64) error {
	_, err := c.WalletAddress(ctx, chatID)
	return err
}

func (c *Controller) signingKey(ctx context.Context, chatID int64) (solana.PrivateKey, error) {
	u, err := c.store.GetUser(ctx, chatID)
	if err != nil {
		return nil, Wrap(KindGateway, "load wallet", err)
	}
	if u == nil {
		return nil, E(KindNoWallet, "no wallet imported")
	}
	secret, err := c.vault.Open(u.EncryptedSecret)
	if err != nil {
		return nil, Wrap(KindGateway, "open secret", err)
	}
	key, err := vault.Resolve(secret)
	if err != nil {
		return nil, Wrap(KindGateway, "resolve key", err)
	}
	return key, nil
}

// record logs audit failures without failing the user-visible action: the
// transfer already happened on chain.
func (c *Controller) record(ctx context.Context, rec store.TransactionRecord) {
	if err := c.store.InsertTransaction(ctx, rec); err != nil {
		c.log.WarnContext(ctx, "audit insert failed",
			slog.String("event", "flow.audit"),
			slog.Int64("chat_id", rec.ChatID),
			slog.String("signature", rec.Signature),
			slog.String("err", err.Error()),
		)
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, Wrap(KindInvalidInput, "amount is not a number", err)
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, E(KindInvalidInput, "amount must be positive")
	}
	return d, nil
}

// toBaseUnits converts a UI amount into integer base units, truncating dust
// below one base unit.
func toBaseUnits(d decimal.Decimal, decimals int32) (uint64, bool) {
	shifted := d.Shift(decimals).Truncate(0)
	if shifted.Sign() <= 0 {
		return 0, false
	}
	bi := shifted.BigInt()
	if !bi.IsUint64() {
		return 0, false
	}
	return bi.Uint64(), true
}

func fromBaseUnits(raw string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.Shift(-decimals), nil
}

func nullString(s string) (out sql.NullString) {
	if s != "" {
		out.String = s
		out.Valid = true
	}
	return out
}
