package domain

import "time"

// Price and value scales used across the engine. Prices are fixed-point
// USD with 8 decimals; stake values are micro-USD (6 decimals).
const (
	PriceScale = 100_000_000
	ValueScale = 1_000_000
)

// TreasuryFeeBps is the platform cut taken from each losing stake.
const TreasuryFeeBps = 1000

// MinArenaDuration is the lower bound enforced on configured durations.
const MinArenaDuration = 60 * time.Second

// GlobalConfig is the protocol-wide singleton record. It is mutated only by
// admin-authenticated calls and carries an explicit version so concurrent
// updates are detectable.
type GlobalConfig struct {
	Version       int64
	Admin         Identity
	Treasury      Identity
	ArenaDuration time.Duration
	MaxPlayers    int
	MaxPerSlot    int
	MinEntryValue int64 // micro-USD
	MaxEntryValue int64 // micro-USD
	NextArenaID   int64
	Paused        bool
	UpdatedAt     time.Time
}
