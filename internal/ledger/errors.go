package ledger

import "errors"

// Validation failures. Rejected before any mutation; no partial state
// change occurs.
var (
	ErrInvalidQuestion = errors.New("ledger: question must not be empty")
	ErrInvalidDeadline = errors.New("ledger: deadline must be in the future")
	ErrInvalidSide     = errors.New("ledger: side must be yes or no")
	ErrInvalidStake    = errors.New("ledger: stake must be positive")
	ErrInvalidOwner    = errors.New("ledger: owner identity is required")
	ErrStakeBelowMin   = errors.New("ledger: stake below configured minimum")
)

// State-machine rejections. Surfaced to the caller as user-visible
// conflicts; never retried, never fatal.
var (
	// ErrMarketNotOpen is returned when betting on a resolved market.
	ErrMarketNotOpen = errors.New("ledger: market is not open for betting")

	// ErrMarketExpired is returned when betting after the deadline, even
	// while the stored status still reads open.
	ErrMarketExpired = errors.New("ledger: market deadline has passed")

	// ErrMarketResolved is returned when resolving an already-resolved
	// market. Resolution is irreversible and runs exactly once.
	ErrMarketResolved = errors.New("ledger: market already resolved")
)
