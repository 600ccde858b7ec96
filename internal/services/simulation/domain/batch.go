package domain

import (
	"math"
	"time"
)

// BatchSize computes how many records each tick should consume so that the
// votes still remaining are exhausted over the replay's target wall-clock
// duration (baseDuration divided by speed, scaled to the unconsumed share of
// the dataset). Recompute whenever the speed changes; at session start
// remainingVotes equals totalVotes and the result is
// ceil(totalVotes / totalTicks).
func BatchSize(totalVotes, remainingVotes int64, speed float64, baseDuration, tickInterval time.Duration) int {
	if remainingVotes <= 0 {
		return 0
	}
	if totalVotes < remainingVotes {
		totalVotes = remainingVotes
	}
	if speed <= 0 {
		speed = 1
	}
	if tickInterval <= 0 {
		tickInterval = time.Second
	}

	target := time.Duration(float64(baseDuration) / speed)
	if totalVotes > 0 {
		target = time.Duration(float64(target) * float64(remainingVotes) / float64(totalVotes))
	}

	ticks := int64(math.Round(float64(target) / float64(tickInterval)))
	if ticks < 1 {
		ticks = 1
	}
	return int(math.Ceil(float64(remainingVotes) / float64(ticks)))
}
