package feed

import (
	"math"
	"strings"
	"time"
)

const (
	freshnessHalfLifeHours = 24.0
	reputationThreshold    = 1000
	interestMatchWeight    = 25.0
	searchRankScale        = 100.0
)

// ScoreItem computes all five subscores for one candidate. Pure: only item
// fields, viewer context and the clock value feed in.
func ScoreItem(item Item, viewer ViewerContext, now time.Time) Subscores {
	age := now.Sub(item.CreatedAt)
	return Subscores{
		Freshness: freshnessScore(age),
		Velocity:  velocityScore(item.LikeCount, item.CommentCount, item.ShareCount, age),
		Affinity:  affinityScore(item, viewer),
		Relevance: relevanceScore(item, viewer),
		Quality:   qualityScore(item),
	}
}

// freshnessScore halves every 24 hours: 100 at age zero, asymptoting to 0.
func freshnessScore(age time.Duration) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}
	return 100 * math.Exp(-math.Ln2*hours/freshnessHalfLifeHours)
}

// velocityScore measures engagement rate rather than cumulative volume.
func velocityScore(likes, comments, shares int64, age time.Duration) float64 {
	ageHours := math.Max(1, age.Hours())
	return (float64(likes) + float64(comments)*3 + float64(shares)*5) / ageHours
}

// affinityScore picks exactly one tier, highest first.
func affinityScore(item Item, viewer ViewerContext) float64 {
	switch {
	case viewer.ViewerID != "" && item.AuthorID == viewer.ViewerID:
		return 100
	case followed(viewer, item.AuthorID):
		return 80
	case item.AuthorVerified:
		return 60
	case item.AuthorReputation > reputationThreshold:
		return 50
	default:
		return 30
	}
}

// relevanceScore prefers declared-interest overlap, falls back to the search
// rank, and is neutral when neither applies.
func relevanceScore(item Item, viewer ViewerContext) float64 {
	if len(viewer.Interests) > 0 && len(item.Tags) > 0 {
		overlap := interestOverlap(viewer.Interests, item.Tags)
		return math.Min(100, interestMatchWeight*float64(overlap))
	}
	if viewer.Query != "" {
		return math.Min(100, item.SearchRank*searchRankScale)
	}
	return 50
}

func qualityScore(item Item) float64 {
	score := float64(item.LikeCount)*0.5 +
		float64(item.CommentCount)*2.0 +
		float64(item.ShareCount)*3.0 +
		float64(item.ViewCount)*0.05
	if item.Featured {
		score += 20
	}
	if item.Pinned {
		score += 15
	}
	return math.Min(100, score)
}

func followed(viewer ViewerContext, authorID string) bool {
	_, ok := viewer.Following[authorID]
	return ok
}

func interestOverlap(interests, tags []string) int {
	tagSet := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tagSet[strings.ToLower(tag)] = struct{}{}
	}
	count := 0
	for _, interest := range interests {
		if _, ok := tagSet[strings.ToLower(interest)]; ok {
			count++
		}
	}
	return count
}
