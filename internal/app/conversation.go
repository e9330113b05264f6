package app

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/getbits/solbot/core/telegram/helpers"
	"github.com/getbits/solbot/core/telegram/keyboard"
	"github.com/getbits/solbot/internal/flow"
)

// InProgress reports whether the chat has a dialog awaiting text. It makes
// App satisfy router.Conversation.
func (a *App) InProgress(chatID int64) bool {
	return a.ctrl.InProgress(chatID)
}

// HandleText feeds a free-text message into the open dialog and renders the
// controller's answer.
func (a *App) HandleText(c tele.Context) error {
	ctx := reqCtx(c)
	chatID := c.Chat().ID

	// The mode decides which usage and cancel texts apply; capture it before
	// the controller advances the dialog.
	mode := a.ctrl.Sessions().Mode(chatID)

	prompt, err := a.ctrl.HandleText(ctx, chatID, c.Text())
	if err != nil {
		return c.Send(dialogErrorText(mode, err))
	}

	switch prompt.Kind {
	case flow.PromptCancelled:
		return c.Send(cancelText(mode))

	case flow.PromptImported:
		// The incoming message carries the secret; remove it from the chat.
		_ = c.Delete()
		return tghelpers.SendMD(c, fmt.Sprintf(msgImported, prompt.Address))

	case flow.PromptConfirmTransfer:
		intent := prompt.Transfer
		text := fmt.Sprintf(
			"Confirm transaction:\nSend %s SOL to %s\n\nAre you sure?",
			intent.Amount.String(), intent.Recipient,
		)
		return c.Send(text, &tele.SendOptions{
			ReplyMarkup: keyboard.ConfirmCancel(cbConfirmSendSOL, cbCancelSendSOL),
		})

	case flow.PromptConfirmTokenTransfer:
		intent := prompt.TokenTransfer
		text := fmt.Sprintf(
			"Confirm transaction:\nSend %s %s (mint: %s) to %s\n\nAre you sure?",
			intent.Amount.String(), intent.Symbol, intent.Mint, intent.Recipient,
		)
		return c.Send(text, &tele.SendOptions{
			ReplyMarkup: keyboard.ConfirmCancel(cbConfirmSendToken, cbCancelSendToken),
		})

	case flow.PromptConfirmSwap:
		intent := prompt.Swap
		text := fmt.Sprintf(
			"Swap Quote:\n%s %s → %s %s\n\nProceed with swap?",
			intent.Amount.String(), intent.From.Symbol,
			intent.ExpectedOut.StringFixed(6), intent.To.Symbol,
		)
		return c.Send(text, &tele.SendOptions{
			ReplyMarkup: keyboard.ConfirmCancel(cbConfirmSwap, cbCancelSwap),
		})
	}

	return nil
}

// cancelText names what was abandoned based on the dialog the chat was in.
func cancelText(mode flow.Mode) string {
	switch mode {
	case flow.ModeAwaitingSecret:
		return "Wallet import cancelled."
	case flow.ModeSendingNative:
		return "Transaction cancelled."
	case flow.ModeSendingToken:
		return "Token transaction cancelled."
	case flow.ModeSwapping:
		return "Swap cancelled."
	default:
		return "Operation cancelled."
	}
}

// usageText is the format reminder for the dialog's expected input.
func usageText(mode flow.Mode) string {
	switch mode {
	case flow.ModeSendingNative:
		return "Invalid format. Please use: `address amount`"
	case flow.ModeSendingToken:
		return "Invalid format. Please use: `address token amount`"
	case flow.ModeSwapping:
		return "Invalid format. Please use: `from_token to_token amount`"
	default:
		return msgGenericError
	}
}

// dialogErrorText maps a controller error onto the reply for the open dialog.
func dialogErrorText(mode flow.Mode, err error) string {
	switch flow.KindOf(err) {
	case flow.KindInvalidSecret:
		return "Invalid private key or seed phrase. Please check and try again."
	case flow.KindInvalidAddress:
		return "Invalid Solana address. Please check and try again."
	case flow.KindInvalidInput:
		if fe, ok := err.(*flow.Error); ok && strings.HasPrefix(fe.Message, "expected:") {
			return usageText(mode)
		}
		return "Invalid amount. Please enter a positive number."
	case flow.KindUnknownToken:
		if mode == flow.ModeSwapping {
			return "One or both tokens not found. Please check the symbols and try again."
		}
		return "Token not found. Please check the symbol and try again."
	case flow.KindNoWallet:
		return msgNeedWallet
	default:
		return msgGenericError
	}
}
