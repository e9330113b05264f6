package app

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/getbits/solbot/core/telegram/helpers"
	"github.com/getbits/solbot/internal/flow"
)

// Callback uniques. The confirm/cancel pairs are bound to the inline
// keyboards built in HandleText.
const (
	cbSendSOL          = "send_sol"
	cbSendToken        = "send_token"
	cbConfirmSendSOL   = "confirm_send_sol"
	cbCancelSendSOL    = "cancel_send_sol"
	cbConfirmSendToken = "confirm_send_token"
	cbCancelSendToken  = "cancel_send_token"
	cbConfirmSwap      = "confirm_swap"
	cbCancelSwap       = "cancel_swap"
)

func (a *App) onSendSOL(c tele.Context) error {
	ctx := reqCtx(c)
	if err := a.ctrl.BeginSendNative(ctx, c.Chat().ID); err != nil {
		if flow.KindOf(err) == flow.KindNoWallet {
			return c.Send(msgNeedWallet)
		}
		return c.Send(msgGenericError)
	}
	return tghelpers.SendMD(c, promptSendSOL)
}

func (a *App) onSendToken(c tele.Context) error {
	ctx := reqCtx(c)
	if err := a.ctrl.BeginSendToken(ctx, c.Chat().ID); err != nil {
		if flow.KindOf(err) == flow.KindNoWallet {
			return c.Send(msgNeedWallet)
		}
		return c.Send(msgGenericError)
	}
	return tghelpers.SendMD(c, promptSendToken)
}

func (a *App) onConfirmSendSOL(c tele.Context) error {
	ctx := reqCtx(c)
	receipt, err := a.ctrl.ConfirmTransfer(ctx, c.Chat().ID)
	if err != nil {
		return a.editConfirmError(c, err, "Transaction expired. Please try again.", "Error sending SOL. Please try again.")
	}
	return tghelpers.EditMD(c, fmt.Sprintf(msgSendSuccess,
		receipt.Amount.String(), receipt.Recipient, receipt.Signature, receipt.Signature))
}

func (a *App) onCancelSendSOL(c tele.Context) error {
	if !a.ctrl.CancelPending(c.Chat().ID) {
		return tghelpers.EditMD(c, "Transaction expired. Please try again.")
	}
	return tghelpers.EditMD(c, "Transaction cancelled.")
}

func (a *App) onConfirmSendToken(c tele.Context) error {
	ctx := reqCtx(c)
	receipt, err := a.ctrl.ConfirmTokenTransfer(ctx, c.Chat().ID)
	if err != nil {
		return a.editConfirmError(c, err, "Transaction expired. Please try again.", "Error sending token. Please try again.")
	}
	return tghelpers.EditMD(c, fmt.Sprintf(msgTokenSendSuccess,
		receipt.Amount.String(), receipt.Token, receipt.Recipient, receipt.Signature, receipt.Signature))
}

func (a *App) onCancelSendToken(c tele.Context) error {
	if !a.ctrl.CancelPending(c.Chat().ID) {
		return tghelpers.EditMD(c, "Transaction expired. Please try again.")
	}
	return tghelpers.EditMD(c, "Token transaction cancelled.")
}

func (a *App) onConfirmSwap(c tele.Context) error {
	ctx := reqCtx(c)
	receipt, err := a.ctrl.ConfirmSwap(ctx, c.Chat().ID)
	if err != nil {
		return a.editConfirmError(c, err, "Swap request expired. Please try again.", "Error executing swap. Please try again.")
	}
	return tghelpers.EditMD(c, fmt.Sprintf(msgSwapSuccess,
		receipt.Amount.String(), receipt.Token,
		receipt.OutAmount.StringFixed(6), receipt.OutToken,
		receipt.Signature, receipt.Signature))
}

func (a *App) onCancelSwap(c tele.Context) error {
	if !a.ctrl.CancelPending(c.Chat().ID) {
		return tghelpers.EditMD(c, "Swap request expired. Please try again.")
	}
	return tghelpers.EditMD(c, "Swap cancelled.")
}

// editConfirmError replaces the confirmation message with the failure reply.
func (a *App) editConfirmError(c tele.Context, err error, staleText, failText string) error {
	switch flow.KindOf(err) {
	case flow.KindStale:
		return tghelpers.EditMD(c, staleText)
	case flow.KindNoWallet:
		return tghelpers.EditMD(c, "Wallet not found. Please import your wallet first.")
	default:
		a.log.WarnContext(reqCtx(c), "confirmation failed",
			slog.String("event", "app.confirm"),
			slog.String("err", err.Error()),
		)
		return tghelpers.EditOrSendMD(c, failText)
	}
}
