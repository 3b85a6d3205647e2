package engagement

import (
	"math"
	"time"
)

// Weight of each counter in the raw engagement sum.
const (
	likeWeight    = 1.0
	commentWeight = 3.0
	shareWeight   = 5.0
	viewWeight    = 0.1
)

// RecomputeScore derives the time-decayed engagement score from the current
// counters. Pure: the same inputs always produce the same score. The one-hour
// age floor keeps brand-new items from dividing by near-zero.
func RecomputeScore(likes, comments, shares, views int64, createdAt, now time.Time) float64 {
	ageHours := math.Max(1, now.Sub(createdAt).Hours())
	raw := float64(likes)*likeWeight +
		float64(comments)*commentWeight +
		float64(shares)*shareWeight +
		float64(views)*viewWeight
	return raw / math.Pow(ageHours, 1.5)
}
