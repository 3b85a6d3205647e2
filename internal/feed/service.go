package feed

import (
	"context"
	"time"

	"backend-pulsefeed/internal/db"
	"backend-pulsefeed/internal/metrics"
	"backend-pulsefeed/internal/social"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Service answers feed queries: filter, enrich, score, rank, page.
// Reads only; a timed-out query has nothing to roll back.
type Service struct {
	db     db.Querier
	social *social.Service
	redis  *redis.Client
	now    func() time.Time
}

func NewService(db db.Querier, socialSvc *social.Service, redisClient *redis.Client) *Service {
	return &Service{db: db, social: socialSvc, redis: redisClient, now: time.Now}
}

// Feed returns one ordered page for the viewer under the selected strategy.
func (s *Service) Feed(ctx context.Context, viewerID string, f Filters) ([]ScoredItem, error) {
	start := time.Now()

	if f.Limit < 1 || f.Limit > 100 {
		return nil, ErrInvalidLimit
	}
	cursor, err := DecodeCursor(f.Cursor)
	if err != nil {
		return nil, err
	}

	// one pagination token: a set Before wins and forces offset 0,
	// plain offsets are the degenerate case
	offset := f.Offset
	before := cursor.Before
	if !before.IsZero() {
		offset = 0
	} else if cursor.Offset > 0 {
		offset = cursor.Offset
	}

	viewer := s.viewerContext(ctx, viewerID, f)

	items, err := s.SelectCandidates(ctx, viewer, f, before)
	if err != nil {
		return nil, err
	}
	if f.ExcludeSeen {
		items = s.dropSeen(ctx, viewerID, items)
	}

	now := s.now()
	weights := WeightsFor(f.Strategy)
	scored := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		sub := ScoreItem(it, viewer, now)
		scored = append(scored, ScoredItem{Item: it, Scores: sub, Blended: Blend(sub, weights)})
	}

	Rank(scored)
	page := Page(scored, offset, f.Limit)

	metrics.ObserveFeedQuery(string(normalizeStrategy(f.Strategy)), start)
	return page, nil
}

// viewerContext resolves the social inputs for scoring. Graph or profile
// failures degrade to the lowest affinity tier instead of failing the query.
func (s *Service) viewerContext(ctx context.Context, viewerID string, f Filters) ViewerContext {
	viewer := ViewerContext{ViewerID: viewerID, Query: f.Search}
	if f.Geo != nil {
		lat, lng := f.Geo.Lat, f.Geo.Lng
		viewer.Lat, viewer.Lng = &lat, &lng
	}

	if s.social == nil {
		return viewer
	}
	following, err := s.social.FollowingSet(ctx, viewerID)
	if err != nil {
		log.Warn().Err(err).Str("viewer_id", viewerID).Msg("follow graph unavailable, degrading affinity")
	} else {
		viewer.Following = following
	}
	interests, err := s.social.Interests(ctx, viewerID)
	if err != nil {
		log.Warn().Err(err).Str("viewer_id", viewerID).Msg("interests unavailable")
	} else {
		viewer.Interests = interests
	}
	return viewer
}

// dropSeen filters out items the viewer already saw, best effort: a cold or
// unreachable seen-set only widens the feed, it never fails the request.
func (s *Service) dropSeen(ctx context.Context, viewerID string, items []Item) []Item {
	seen := map[string]struct{}{}
	if s.redis != nil {
		members, err := s.redis.SMembers(ctx, "seen:"+viewerID).Result()
		if err != nil {
			log.Warn().Err(err).Msg("seen set unavailable")
		}
		for _, id := range members {
			seen[id] = struct{}{}
		}
	}

	kept := items[:0]
	for _, it := range items {
		if it.Viewer.HasViewed {
			continue
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

// NextCursor builds the token for the following page from the oldest item on
// this one.
func NextCursor(page []ScoredItem) string {
	if len(page) == 0 {
		return ""
	}
	oldest := page[0].CreatedAt
	for _, it := range page[1:] {
		if it.CreatedAt.Before(oldest) {
			oldest = it.CreatedAt
		}
	}
	return EncodeCursor(Cursor{Before: oldest})
}

func normalizeStrategy(strategy Strategy) Strategy {
	if _, ok := strategyWeights[strategy]; ok {
		return strategy
	}
	return StrategySmart
}
