package domain

// ClaimBitmapWidth is the number of ordinal positions a claim bitmap can
// track, and therefore the hard ceiling on max players per arena.
const ClaimBitmapWidth = 64

// ClaimBitmap records which opposing entries a winner has already been paid
// from, one bit per participant ordinal. The check-and-set always happens
// inside the same ledger transaction as the escrow transfer.
type ClaimBitmap uint64

// Has reports whether the bit for the given ordinal is set.
func (b ClaimBitmap) Has(ordinal int) bool {
	if ordinal < 0 || ordinal >= ClaimBitmapWidth {
		return false
	}
	return b&(1<<uint(ordinal)) != 0
}

// Set returns a copy of the bitmap with the given ordinal's bit set.
func (b ClaimBitmap) Set(ordinal int) ClaimBitmap {
	if ordinal < 0 || ordinal >= ClaimBitmapWidth {
		return b
	}
	return b | (1 << uint(ordinal))
}

// Count returns the number of set bits.
func (b ClaimBitmap) Count() int {
	n := 0
	for v := uint64(b); v != 0; v &= v - 1 {
		n++
	}
	return n
}
