package flow

import "fmt"

// Kind is the closed set of failure categories surfaced to the user layer.
// Handlers map each kind to a reply; anything outside the set is a bug.
type Kind string

const (
	// KindInvalidInput covers malformed amounts and unusable free text.
	KindInvalidInput Kind = "invalid_input"
	// KindInvalidAddress covers recipient or mint addresses that do not parse.
	KindInvalidAddress Kind = "invalid_address"
	// KindInvalidSecret covers secrets that are neither a seed phrase nor a base58 key.
	KindInvalidSecret Kind = "invalid_secret"
	// KindNoWallet is returned when an operation requires an imported wallet.
	KindNoWallet Kind = "no_wallet"
	// KindUnknownToken is returned when a symbol is not in the token list.
	KindUnknownToken Kind = "unknown_token"
	// KindGateway wraps chain, market or store failures.
	KindGateway Kind = "gateway"
	// KindStale is returned when a confirmation arrives for an action that no
	// longer exists (already executed, cancelled, or expired).
	KindStale Kind = "stale"
)

// Error is the typed error returned by controller operations.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Code reports the kind for log classification.
func (e *Error) Code() string { return string(e.Kind) }

// E builds an Error without a cause.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, or empty when err is not a flow error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if fe, ok := err.(*Error); ok {
		return fe.Kind
	}
	return ""
}
