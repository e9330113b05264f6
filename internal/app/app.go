// Package app assembles the bot: it binds the conversation controller, the
// chain and market gateways, and the persistence layer to Telegram commands
// and callbacks.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/getbits/solbot/core/config"
	"github.com/getbits/solbot/core/logger"
	tg "github.com/getbits/solbot/core/telegram"
	"github.com/getbits/solbot/core/telegram/commands"
	tghelpers "github.com/getbits/solbot/core/telegram/helpers"
	"github.com/getbits/solbot/core/telegram/router"
	"github.com/getbits/solbot/internal/chain"
	"github.com/getbits/solbot/internal/flow"
	"github.com/getbits/solbot/internal/market"
	"github.com/getbits/solbot/internal/store"
	"github.com/getbits/solbot/internal/vault"
)

const purgeInterval = time.Minute

// App wires every component of the bot together.
type App struct {
	cfg    *config.Config
	ctrl   *flow.Controller
	chain  *chain.Client
	prices *market.CoinGecko
	log    *slog.Logger
}

// New builds the application from configuration and an open database handle.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	v, err := vault.New(cfg.EncryptionKey())
	if err != nil {
		return nil, err
	}

	ch := chain.New(cfg.Solana.RPCURL, time.Duration(cfg.Solana.ConfirmTimeoutSeconds)*time.Second)
	jup := market.NewJupiter(cfg.Jupiter.APIURL, cfg.Jupiter.TokenListURL, cfg.Jupiter.SlippageBps)
	st := store.New(db)
	sessions := flow.NewSessions(time.Duration(cfg.Session.TTLMinutes) * time.Minute)

	return &App{
		cfg:    cfg,
		ctrl:   flow.NewController(sessions, v, ch, jup, st),
		chain:  ch,
		prices: market.NewCoinGecko(cfg.Pricing.CoinGeckoURL),
		log:    logger.Component("app"),
	}, nil
}

// BuildRegistry registers every command and callback the bot serves.
func (a *App) BuildRegistry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{Handler: a.handleStart, Description: "Show the welcome message"})
	reg.RegisterCommand("/help", commands.Command{Handler: a.handleHelp, Description: "Show help information"})
	reg.RegisterCommand("/importwallet", commands.Command{Handler: a.handleImportWallet, Description: "Import your Solana wallet"})
	reg.RegisterCommand("/balance", commands.Command{Handler: a.handleBalance, Description: "Check your wallet balance"})
	reg.RegisterCommand("/send", commands.Command{Handler: a.handleSend, Description: "Send SOL or tokens"})
	reg.RegisterCommand("/swap", commands.Command{Handler: a.handleSwap, Description: "Swap between tokens"})
	reg.RegisterCommand("/price", commands.Command{Handler: a.handlePrice, Description: "Check token prices"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: a.handleCancel, Description: "Cancel the current operation", Hidden: true})

	_ = reg.RegisterCallback(cbSendSOL, a.onSendSOL)
	_ = reg.RegisterCallback(cbSendToken, a.onSendToken)
	_ = reg.RegisterCallback(cbConfirmSendSOL, a.onConfirmSendSOL)
	_ = reg.RegisterCallback(cbCancelSendSOL, a.onCancelSendSOL)
	_ = reg.RegisterCallback(cbConfirmSendToken, a.onConfirmSendToken)
	_ = reg.RegisterCallback(cbCancelSendToken, a.onCancelSendToken)
	_ = reg.RegisterCallback(cbConfirmSwap, a.onConfirmSwap)
	_ = reg.RegisterCallback(cbCancelSwap, a.onCancelSwap)

	return reg
}

// RunOptions assembles everything telegram.Run needs.
func (a *App) RunOptions() tg.RunOptions {
	reg := a.BuildRegistry()

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoute(a, reg, router.TextOptions{}))

	return tg.RunOptions{
		Token:                  a.cfg.Telegram.Token,
		LongPollTimeoutSeconds: a.cfg.Telegram.LongPollTimeoutSeconds,
		Registry:               reg,
		Middlewares: tg.DefaultMiddlewares(tg.RateLimitSettings{
			IntervalMS:     a.cfg.RateLimit.IntervalMS,
			ExcludeUpdates: a.cfg.RateLimit.ExcludeUpdates,
		}, nil),
		Routes:  routes,
		OnStart: a.onStart,
	}
}

// onStart launches the session purge loop; it stops with the run context.
func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if dropped := a.ctrl.Sessions().Purge(); dropped > 0 {
					a.log.Debug("sessions purged",
						slog.String("event", "app.purge"),
						slog.Int("dropped", dropped),
					)
				}
			}
		}
	}()
	return nil
}

// reqCtx returns the request-scoped context stored by the logger middleware.
func reqCtx(c tele.Context) context.Context {
	if ctx, ok := tghelpers.ContextFrom(c); ok {
		return ctx
	}
	return tghelpers.BuildContext(c)
}
