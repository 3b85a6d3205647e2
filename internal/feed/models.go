package feed

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// Strategy selects the blend weights applied to the five subscores.
type Strategy string

const (
	StrategySmart        Strategy = "smart"
	StrategyFollowing    Strategy = "following"
	StrategyTrending     Strategy = "trending"
	StrategyRecent       Strategy = "recent"
	StrategyPopular      Strategy = "popular"
	StrategyPersonalized Strategy = "personalized"
)

var (
	ErrInvalidLimit = errors.New("limit must be between 1 and 100")
	ErrBadCursor    = errors.New("malformed cursor")
)

// ViewerFlags annotates an item with the requesting viewer's own interactions.
type ViewerFlags struct {
	HasLiked   bool   `json:"has_liked"`
	ReactionID string `json:"reaction_id,omitempty"`
	HasSaved   bool   `json:"has_saved"`
	HasShared  bool   `json:"has_shared"`
	HasViewed  bool   `json:"has_viewed"`
}

// Item is one feed candidate with its author projection and counters.
type Item struct {
	ID               string    `json:"id"`
	AuthorID         string    `json:"author_id"`
	AuthorName       string    `json:"author_name"`
	AuthorVerified   bool      `json:"author_verified"`
	AuthorReputation int64     `json:"-"`
	PostType         string    `json:"post_type"`
	Category         string    `json:"category,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	Privacy          string    `json:"privacy"`
	Pinned           bool      `json:"pinned"`
	Featured         bool      `json:"featured"`
	Sensitive        bool      `json:"sensitive"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	LikeCount        int64     `json:"like_count"`
	CommentCount     int64     `json:"comment_count"`
	ShareCount       int64     `json:"share_count"`
	ViewCount        int64     `json:"view_count"`
	EngagementScore  float64   `json:"engagement_score"`
	Lat              *float64  `json:"lat,omitempty"`
	Lng              *float64  `json:"lng,omitempty"`
	DistanceKm       *float64  `json:"distance_km,omitempty"`

	// SearchRank is the raw tsquery rank for the current request, zero when
	// no search text was supplied.
	SearchRank float64 `json:"-"`

	Viewer ViewerFlags `json:"viewer"`
}

// ViewerContext is the per-request view of who is asking. Never persisted.
type ViewerContext struct {
	ViewerID  string
	Following map[string]struct{}
	Interests []string
	Lat       *float64
	Lng       *float64
	Query     string
}

// GeoFilter is an optional radius restriction. Items without a stored
// location are never excluded by it.
type GeoFilter struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// Filters narrows the candidate universe before scoring.
type Filters struct {
	PostTypes        []string
	Category         string
	Tags             []string
	AuthorID         string
	Privacy          string
	Search           string
	Geo              *GeoFilter
	IncludeSensitive bool
	MinEngagement    float64
	PostedAfter      time.Time
	PostedBefore     time.Time
	ExcludeSeen      bool

	Strategy Strategy
	Limit    int
	Offset   int
	Cursor   string
}

// Subscores are the five independent ranking signals, roughly 0-100 each
// (velocity is unbounded above).
type Subscores struct {
	Freshness float64 `json:"freshness"`
	Velocity  float64 `json:"velocity"`
	Affinity  float64 `json:"affinity"`
	Relevance float64 `json:"relevance"`
	Quality   float64 `json:"quality"`
}

// ScoredItem pairs an item with its subscores and blended rank value.
type ScoredItem struct {
	Item
	Scores  Subscores `json:"scores"`
	Blended float64   `json:"blended_score"`
}

// Cursor is the single pagination token. Offset-only paging is the
// degenerate case with a zero Before; once Before is set, Offset is ignored.
type Cursor struct {
	Before time.Time `json:"b,omitempty"`
	Offset int       `json:"o,omitempty"`
}

func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrBadCursor
	}
	return c, nil
}
