package domain

import "time"

// PlayerEntry is one participant's stake in one arena. Entries are created at
// admission and mutated only by settlement; they are never destroyed.
type PlayerEntry struct {
	ArenaID     int64
	Player      Identity
	SlotIndex   int16
	StakeAmount int64 // native units of the staked asset
	StakeValue  int64 // observed micro-USD value at admission
	Ordinal     int   // bit position in other entries' claim bitmaps
	EnteredAt   time.Time

	Winner          bool
	OwnStakeClaimed bool        // also guards the refund path on cancellation
	FeeClaimed      bool        // treasury sweep done for this (losing) entry
	RewardsClaimed  ClaimBitmap // losers this (winning) entry has drained
}
