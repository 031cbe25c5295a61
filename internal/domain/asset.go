package domain

// WhitelistEntry describes a stakeable asset slot. Removal is a soft delete:
// the record stays addressable but inactive entries admit no new stakes.
type WhitelistEntry struct {
	SlotIndex int16
	ChainTag  string // e.g. "evm", "solana"
	AssetID   []byte // underlying asset identity (address bytes)
	Symbol    string
	Active    bool
}

// AssetAggregate is the per-(arena, slot) rollup of stakers, pooled stake and
// the two price samples. Created lazily on the first entry into that slot.
type AssetAggregate struct {
	ArenaID     int64
	SlotIndex   int16
	PlayerCount int
	PooledStake int64
	StartPrice  int64 // PriceScale fixed-point, 0 = unset
	EndPrice    int64 // PriceScale fixed-point, 0 = unset
	MovementBps int64 // defined only once both prices are set
	MovementSet bool
}
