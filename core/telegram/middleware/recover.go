package middleware

import (
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/getbits/solbot/core/logger"
	tghelpers "github.com/getbits/solbot/core/telegram/helpers"
)

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
// The user gets a generic failure reply; details stay in the log.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				ctx, _ := tghelpers.ContextFrom(c)
				logger.Error(ctx, "tg", "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				_ = c.Send("An error occurred. Please try again.")
			}
		}()
		return next(c)
	}
}
