package app

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/getbits/solbot/core/telegram/helpers"
	"github.com/getbits/solbot/core/telegram/keyboard"
	"github.com/getbits/solbot/internal/flow"
)

func (a *App) handleStart(c tele.Context) error {
	ctx := reqCtx(c)

	walletLine := "You have not connected a wallet yet."
	addr, err := a.ctrl.WalletAddress(ctx, c.Chat().ID)
	switch {
	case err == nil:
		walletLine = "Your connected wallet: " + addr
	case flow.KindOf(err) != flow.KindNoWallet:
		a.log.WarnContext(ctx, "wallet lookup failed",
			slog.String("event", "app.start"),
			slog.String("err", err.Error()),
		)
	}

	return c.Send(fmt.Sprintf(msgWelcome, walletLine))
}

func (a *App) handleHelp(c tele.Context) error {
	return c.Send(msgHelp)
}

func (a *App) handleImportWallet(c tele.Context) error {
	a.ctrl.StartImport(c.Chat().ID)
	return c.Send(msgImportWarning)
}

func (a *App) handleBalance(c tele.Context) error {
	ctx := reqCtx(c)

	addr, err := a.ctrl.WalletAddress(ctx, c.Chat().ID)
	if err != nil {
		if flow.KindOf(err) == flow.KindNoWallet {
			return c.Send(msgNeedWallet)
		}
		return c.Send("Error checking balance. Please try again later.")
	}

	owner, perr := solana.PublicKeyFromBase58(addr)
	if perr != nil {
		return c.Send("Error checking balance. Please try again later.")
	}

	lamports, err := a.chain.Balance(ctx, owner)
	if err != nil {
		a.log.WarnContext(ctx, "balance fetch failed",
			slog.String("event", "app.balance"),
			slog.String("err", err.Error()),
		)
		return c.Send("Error checking balance. Please try again later.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 Wallet Balance\n\n")
	fmt.Fprintf(&b, "SOL: %s SOL\n", lamportsToSOL(lamports).StringFixed(4))
	fmt.Fprintf(&b, "Address: `%s`\n\n", addr)

	tokens, err := a.chain.TokenAccounts(ctx, owner)
	switch {
	case err != nil:
		b.WriteString("Token balances are unavailable right now.\n")
	case len(tokens) == 0:
		b.WriteString("No token balances found.\n")
	default:
		b.WriteString("Token Balances:\n")
		for _, t := range tokens {
			fmt.Fprintf(&b, "%s (mint: `%s`)\n", t.UIAmount, t.Mint)
		}
	}

	b.WriteString("\nUse /send to transfer funds.")
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleSend(c tele.Context) error {
	ctx := reqCtx(c)

	if _, err := a.ctrl.WalletAddress(ctx, c.Chat().ID); err != nil {
		if flow.KindOf(err) == flow.KindNoWallet {
			return c.Send(msgNeedWallet)
		}
		return c.Send(msgGenericError)
	}

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Send SOL", Unique: cbSendSOL},
		{Text: "Send SPL Token", Unique: cbSendToken},
	})
	return c.Send("Choose what you want to send:", &tele.SendOptions{ReplyMarkup: markup})
}

func (a *App) handleSwap(c tele.Context) error {
	ctx := reqCtx(c)

	if err := a.ctrl.BeginSwap(ctx, c.Chat().ID); err != nil {
		if flow.KindOf(err) == flow.KindNoWallet {
			return c.Send(msgNeedWallet)
		}
		return c.Send(msgGenericError)
	}
	return tghelpers.SendMD(c, promptSwap)
}

func (a *App) handlePrice(c tele.Context) error {
	ctx := reqCtx(c)

	symbol := ""
	if c.Message() != nil {
		symbol = strings.TrimSpace(c.Message().Payload)
	}

	if symbol == "" {
		price, err := a.prices.SolPrice(ctx)
		if err != nil {
			return c.Send("Error fetching price data. Please try again later.")
		}
		return c.Send(fmt.Sprintf(
			"💰 Current Prices\n\nSOL: $%s USD\n\nFor other tokens, use /price <token_symbol>",
			price.StringFixed(2),
		))
	}

	price, found, err := a.prices.Price(ctx, strings.ToLower(symbol))
	if err != nil {
		return c.Send("Error fetching price data. Please try again later.")
	}
	if !found {
		return c.Send(fmt.Sprintf("Unable to fetch price for %s. Please check the symbol and try again.", symbol))
	}
	return c.Send(fmt.Sprintf(
		"💰 Current Price\n\n%s: $%s USD",
		strings.ToUpper(symbol), price.StringFixed(2),
	))
}

func (a *App) handleCancel(c tele.Context) error {
	mode := a.ctrl.Sessions().Mode(c.Chat().ID)
	if !a.ctrl.Cancel(c.Chat().ID) {
		return c.Send("Nothing to cancel.")
	}
	return c.Send(cancelText(mode))
}

func lamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}
