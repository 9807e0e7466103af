package ledger

import "errors"

var (
	// ErrInsufficientCredits is terminal: the caller should surface an
	// upsell prompt, never retry.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotFound indicates the referenced user or project does not exist.
	ErrNotFound = errors.New("ledger record not found")

	// ErrConflict reports a lost race on a conditional ledger update. The
	// service retries once with fresh state before giving up.
	ErrConflict = errors.New("ledger update conflict")
)
