package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Lifecycle-state errors.
	ErrProtocolPaused     = errors.New("protocol is paused")
	ErrArenaFull          = errors.New("arena is full")
	ErrArenaNotWaiting    = errors.New("arena is not accepting entries")
	ErrArenaNotReady      = errors.New("arena is not ready for start prices")
	ErrArenaNotActive     = errors.New("arena is not active")
	ErrArenaNotEnding     = errors.New("arena is not collecting end prices")
	ErrArenaNotEnded      = errors.New("arena has not ended")
	ErrArenaNotCancelled  = errors.New("arena is not cancelled")
	ErrDurationNotElapsed = errors.New("arena duration not complete")

	// Domain-validation errors.
	ErrSlotNotWhitelisted = errors.New("asset slot is not whitelisted")
	ErrSlotCapReached     = errors.New("max entries for this asset slot reached")
	ErrAlreadyEntered     = errors.New("participant already entered this arena")
	ErrEntryOutOfBounds   = errors.New("entry value outside configured bounds")
	ErrInvalidDuration    = errors.New("arena duration below minimum")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidSlot        = errors.New("invalid asset slot")
	ErrMissingPrice       = errors.New("price sample missing for an asset slot")
	ErrInsufficientEscrow = errors.New("insufficient escrow balance")

	// Idempotency errors.
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrSettlementOpen = errors.New("settlement claims still outstanding")
	ErrNotWinner      = errors.New("entry is not on the winning slot")
	ErrNotLoser       = errors.New("cannot claim from a winning entry")
)
