package lifecycle

import "errors"

var (
	// ErrWrongState means the atelier exists but its current status does not
	// admit the requested operation.
	ErrWrongState = errors.New("operation not legal in current status")
	// ErrAlreadyTerminal means the atelier reached a terminal status; the
	// operation is refused rather than repeated.
	ErrAlreadyTerminal = errors.New("atelier is in a terminal status")
	// ErrForbidden means the acting user does not own the atelier.
	ErrForbidden = errors.New("actor does not own this atelier")
	// ErrEscrowAttached means delete was requested while coins are still
	// frozen against the atelier; cancel resolves the escrow first.
	ErrEscrowAttached = errors.New("escrow still attached; cancel first")
)
