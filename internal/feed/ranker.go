package feed

import "sort"

// Weights blend the five subscores into one rank value. Each strategy's
// weights sum to 1.0.
type Weights struct {
	Freshness float64
	Velocity  float64
	Affinity  float64
	Relevance float64
	Quality   float64
}

var strategyWeights = map[Strategy]Weights{
	StrategySmart:        {Freshness: 0.25, Velocity: 0.20, Affinity: 0.20, Relevance: 0.20, Quality: 0.15},
	StrategyFollowing:    {Affinity: 0.6, Freshness: 0.4},
	StrategyTrending:     {Velocity: 0.5, Quality: 0.3, Freshness: 0.2},
	StrategyRecent:       {Freshness: 1.0},
	StrategyPopular:      {Quality: 1.0},
	StrategyPersonalized: {Relevance: 0.35, Affinity: 0.25, Quality: 0.20, Freshness: 0.15, Velocity: 0.05},
}

// WeightsFor returns the blend for a strategy, falling back to smart for
// anything unknown.
func WeightsFor(strategy Strategy) Weights {
	if w, ok := strategyWeights[strategy]; ok {
		return w
	}
	return strategyWeights[StrategySmart]
}

// Blend is the weighted sum of subscores.
func Blend(s Subscores, w Weights) float64 {
	return s.Freshness*w.Freshness +
		s.Velocity*w.Velocity +
		s.Affinity*w.Affinity +
		s.Relevance*w.Relevance +
		s.Quality*w.Quality
}

// Rank sorts in place, descending by (pinned, blended score, creation time).
// The three-level key keeps the ordering deterministic when blended scores
// tie exactly.
func Rank(items []ScoredItem) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.Blended != b.Blended {
			return a.Blended > b.Blended
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Page applies offset/limit over the fully-ordered sequence.
func Page(items []ScoredItem, offset, limit int) []ScoredItem {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []ScoredItem{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
