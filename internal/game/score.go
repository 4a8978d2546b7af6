package game

import (
	"time"

	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
)

// QuestionScore is the question's point value plus a time bonus scaled by
// how much of the countdown was left, capped at MaxTimeBonus.
func QuestionScore(points int, remaining, limit time.Duration) int {
	if limit <= 0 || remaining <= 0 {
		return points
	}
	if remaining > limit {
		remaining = limit
	}
	bonus := int(float64(constants.MaxTimeBonus) * remaining.Seconds() / limit.Seconds())
	return points + bonus
}
