// Package chain talks to a Solana RPC node: balances, token accounts, and
// transaction build/sign/submit/confirm.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	ata "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/getbits/solbot/core/logger"
)

const defaultPollInterval = 2 * time.Second

// TokenBalance is one SPL token holding of a wallet.
type TokenBalance struct {
	Mint     string
	Amount   uint64
	Decimals uint8
	UIAmount string
}

// Client is the chain gateway. All methods honour the passed context.
type Client struct {
	rpc            *rpc.Client
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// New dials nothing; it builds a client around the given RPC endpoint.
func New(rpcURL string, confirmTimeout time.Duration) *Client {
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	return &Client{
		rpc:            rpc.New(rpcURL),
		confirmTimeout: confirmTimeout,
		pollInterval:   defaultPollInterval,
	}
}

// ValidAddress reports whether s parses as a Solana public key.
func ValidAddress(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// Balance returns the SOL balance of owner in lamports.
func (c *Client) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

// parsedTokenAccount mirrors the jsonParsed layout of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount         string `json:"amount"`
				Decimals       uint8  `json:"decimals"`
				UIAmountString string `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// TokenAccounts lists the owner's SPL token holdings with a non-zero balance.
func (c *Client) TokenAccounts(ctx context.Context, owner solana.PublicKey) ([]TokenBalance, error) {
	out, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, fmt.Errorf("get token accounts: %w", err)
	}

	var balances []TokenBalance
	for _, acct := range out.Value {
		raw := acct.Account.Data.GetRawJSON()
		var parsed parsedTokenAccount
		if err := json.Unmarshal(raw, &parsed); err != nil {
			logger.Component("chain").Warn("skip unparsable token account",
				slog.String("event", "chain.token_accounts"),
				slog.String("err", err.Error()),
			)
			continue
		}
		info := parsed.Parsed.Info
		amount, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}
		if amount == 0 {
			continue
		}
		balances = append(balances, TokenBalance{
			Mint:     info.Mint,
			Amount:   amount,
			Decimals: info.TokenAmount.Decimals,
			UIAmount: info.TokenAmount.UIAmountString,
		})
	}
	return balances, nil
}

// MintDecimals resolves the decimal count of an SPL mint.
func (c *Client) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	out, err := c.rpc.GetTokenSupply(ctx, mint, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get token supply: %w", err)
	}
	return out.Value.Decimals, nil
}

// TransferSOL moves lamports from the key's wallet to recipient and waits for
// confirmation.
func (c *Client) TransferSOL(ctx context.Context, key solana.PrivateKey, recipient solana.PublicKey, lamports uint64) (solana.Signature, error) {
	ix := system.NewTransferInstruction(lamports, key.PublicKey(), recipient).Build()
	return c.signSubmitConfirm(ctx, key, []solana.Instruction{ix})
}

// TransferToken moves amount base units of mint to the recipient wallet,
// creating the recipient's associated token account when missing.
func (c *Client) TransferToken(ctx context.Context, key solana.PrivateKey, recipient, mint solana.PublicKey, amount uint64, decimals uint8) (solana.Signature, error) {
	owner := key.PublicKey()

	source, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("derive source ata: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("derive dest ata: %w", err)
	}

	var instructions []solana.Instruction

	exists, err := c.accountExists(ctx, dest)
	if err != nil {
		return solana.Signature{}, err
	}
	if !exists {
		instructions = append(instructions, ata.NewCreateInstruction(owner, recipient, mint).Build())
	}

	instructions = append(instructions, token.NewTransferCheckedInstruction(
		amount, decimals, source, mint, dest, owner, []solana.PublicKey{},
	).Build())

	return c.signSubmitConfirm(ctx, key, instructions)
}

// SignAndSubmit deserializes a prebuilt transaction (for example the swap
// transaction returned by an aggregator), signs it, submits it, and waits for
// confirmation.
func (c *Client) SignAndSubmit(ctx context.Context, key solana.PrivateKey, txBytes []byte) (solana.Signature, error) {
	tx, err := solana.TransactionFromBytes(txBytes)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("decode transaction: %w", err)
	}

	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	return c.submitAndConfirm(ctx, tx)
}

func (c *Client) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get account info: %w", err)
	}
	return true, nil
}

func (c *Client) signSubmitConfirm(ctx context.Context, key solana.PrivateKey, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(key.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	return c.submitAndConfirm(ctx, tx)
}

func (c *Client) submitAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	logger.Info(ctx, "chain", "chain.submit",
		slog.String("signature", sig.String()),
	)

	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation timed out for %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}

		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			logger.Warn(ctx, "chain", "chain.confirm",
				slog.String("signature", sig.String()),
				slog.String("err", err.Error()),
			)
			continue
		}
		if len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}
		status := out.Value[0]
		if status.Err != nil {
			return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			logger.Info(ctx, "chain", "chain.confirm",
				slog.String("signature", sig.String()),
				slog.String("status", string(status.ConfirmationStatus)),
			)
			return nil
		}
	}
}
