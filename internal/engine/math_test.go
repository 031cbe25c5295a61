package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMovementBps(t *testing.T) {
	tests := []struct {
		name  string
		start int64
		end   int64
		want  int64
	}{
		{"flat", 100, 100, 0},
		{"up ten percent", 100, 110, 1000},
		{"down ten percent", 100, 90, -1000},
		{"doubles", 50, 100, 10000},
		{"floors toward negative infinity", 3, 1, -6667},
		{"positive truncation", 3, 4, 3333},
		{"large prices do not overflow", 90_000 * 100_000_000, 91_000 * 100_000_000, 111},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MovementBps(tt.start, tt.end))
		})
	}
}

func TestRewardShare(t *testing.T) {
	assert.Equal(t, int64(9_000_000), rewardShare(10_000_000, 1))
	assert.Equal(t, int64(4_500_000), rewardShare(10_000_000, 2))
	assert.Equal(t, int64(3_000_000), rewardShare(10_000_000, 3))
	// Zero co-winners is clamped rather than dividing by zero.
	assert.Equal(t, int64(9_000_000), rewardShare(10_000_000, 0))
	// Floor division drops sub-unit remainders.
	assert.Equal(t, int64(4_500_000), rewardShare(10_000_001, 2))
}

func TestFeeShare(t *testing.T) {
	assert.Equal(t, int64(1_000_000), feeShare(10_000_000))
	assert.Equal(t, int64(1_000_000), feeShare(10_000_001))
	assert.Equal(t, int64(0), feeShare(9))
}
