package domain

import "time"

// ArenaStatus is the lifecycle state of an arena.
type ArenaStatus string

const (
	ArenaWaiting   ArenaStatus = "waiting"   // accepting entries
	ArenaReady     ArenaStatus = "ready"     // full, awaiting start prices
	ArenaStarting  ArenaStatus = "starting"  // start prices partially set
	ArenaActive    ArenaStatus = "active"    // running until end timestamp
	ArenaEnding    ArenaStatus = "ending"    // end prices partially set
	ArenaEnded     ArenaStatus = "ended"     // winner declared, settlement open
	ArenaCancelled ArenaStatus = "cancelled" // tie, refunds open
	ArenaSuspended ArenaStatus = "suspended" // emergency halt
)

// NoWinningSlot marks an arena whose winner has not been determined.
const NoWinningSlot = int16(-1)

// Arena is one round of the competition. Arenas are append-only history:
// once created they are never destroyed, terminal arenas stay addressable
// for settlement calls indefinitely.
type Arena struct {
	ID             int64
	Status         ArenaStatus
	PlayerCount    int
	AssetCount     int // distinct slots in use
	TotalPool      int64
	StartPricesSet int
	EndPricesSet   int
	StartTime      time.Time
	EndTime        time.Time
	WinningSlot    int16
	Cancelled      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AcceptsEntries reports whether new player entries may be admitted.
func (a Arena) AcceptsEntries() bool {
	return a.Status == ArenaWaiting
}

// Terminal reports whether the arena lifecycle has finished. Terminal arenas
// still accept settlement claims.
func (a Arena) Terminal() bool {
	return a.Status == ArenaEnded || a.Status == ArenaCancelled
}
