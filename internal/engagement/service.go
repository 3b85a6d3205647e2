package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-pulsefeed/internal/db"
	"backend-pulsefeed/internal/metrics"
	"backend-pulsefeed/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const seenSetTTL = 7 * 24 * time.Hour

// Service is the single write path for engagement counters. Counter
// mutations are issued as one atomic UPDATE each; the derived score is
// recomputed in the same call before the caller sees the result.
type Service struct {
	db    db.Querier
	redis *redis.Client
	hub   *stream.Hub
	now   func() time.Time
}

func NewService(db db.Querier, redisClient *redis.Client, hub *stream.Hub) *Service {
	return &Service{db: db, redis: redisClient, hub: hub, now: time.Now}
}

// ApplyDelta adjusts one counter on the target's post by sign and refreshes
// the engagement score. A missing or retired target returns ErrTargetNotFound
// without touching any counter.
func (s *Service) ApplyDelta(ctx context.Context, target Target, kind DeltaKind, sign int) (Counters, error) {
	if sign != 1 && sign != -1 {
		return Counters{}, ErrBadSign
	}
	column, err := counterColumn(kind)
	if err != nil {
		return Counters{}, err
	}
	postID, err := s.resolvePost(ctx, target)
	if err != nil {
		return Counters{}, err
	}

	counters, err := s.applyCounter(ctx, postID, column, sign)
	if err != nil {
		return Counters{}, err
	}
	s.publish(string(kind), counters)
	return counters, nil
}

// RecordView is idempotent per (post, viewer, calendar day): the first call
// of the day creates the event row and bumps view_count by one, repeats only
// stretch the recorded duration. The newly-created check gates the counter so
// a lost upsert race still counts exactly once.
func (s *Service) RecordView(ctx context.Context, postID, viewerID string, day time.Time, durationSecs int) (Counters, bool, error) {
	viewDay := day.UTC().Format("2006-01-02")

	var created bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO post_views (id, post_id, viewer_id, view_day, duration_secs)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (post_id, viewer_id, view_day)
		DO UPDATE SET duration_secs = GREATEST(post_views.duration_secs, EXCLUDED.duration_secs)
		RETURNING (xmax = 0)
	`, uuid.NewString(), postID, viewerID, viewDay, durationSecs).Scan(&created)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Counters{}, false, ErrTargetNotFound
		}
		return Counters{}, false, err
	}

	var counters Counters
	if created {
		counters, err = s.applyCounter(ctx, postID, "view_count", 1)
		if err != nil {
			return Counters{}, false, err
		}
		s.publish("view", counters)
	} else {
		metrics.ViewDedupHits.Inc()
		counters, err = s.counters(ctx, postID)
		if err != nil {
			return Counters{}, false, err
		}
	}

	s.markSeen(ctx, viewerID, postID)
	return counters, created, nil
}

// RecordReaction toggles the actor's reaction on the target. Repeating the
// same reaction removes it; a different reaction replaces it without touching
// counters. Returns whether a reaction is now active.
func (s *Service) RecordReaction(ctx context.Context, actorID string, target Target, reactionID string) (bool, Counters, error) {
	postID, err := s.resolvePost(ctx, target)
	if err != nil {
		return false, Counters{}, err
	}

	var existingID, existingReaction string
	err = s.db.QueryRow(ctx, `
		SELECT id, reaction_id FROM post_reactions WHERE post_id=$1 AND user_id=$2
	`, postID, actorID).Scan(&existingID, &existingReaction)

	switch {
	case err == nil && existingReaction == reactionID:
		if _, err := s.db.Exec(ctx, `DELETE FROM post_reactions WHERE id=$1`, existingID); err != nil {
			return false, Counters{}, err
		}
		counters, err := s.applyCounter(ctx, postID, "like_count", -1)
		if err != nil {
			return false, Counters{}, err
		}
		s.publish(string(DeltaLike), counters)
		return false, counters, nil

	case err == nil:
		if _, err := s.db.Exec(ctx, `
			UPDATE post_reactions SET reaction_id=$2 WHERE id=$1
		`, existingID, reactionID); err != nil {
			return false, Counters{}, err
		}
		counters, err := s.counters(ctx, postID)
		return true, counters, err

	case errors.Is(err, pgx.ErrNoRows):
		var created bool
		err := s.db.QueryRow(ctx, `
			INSERT INTO post_reactions (id, post_id, user_id, reaction_id)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (post_id, user_id) DO UPDATE SET reaction_id = EXCLUDED.reaction_id
			RETURNING (xmax = 0)
		`, uuid.NewString(), postID, actorID, reactionID).Scan(&created)
		if err != nil {
			if isForeignKeyViolation(err) {
				return false, Counters{}, ErrTargetNotFound
			}
			return false, Counters{}, err
		}
		if !created {
			// lost the insert race; the winner already counted it
			counters, err := s.counters(ctx, postID)
			return true, counters, err
		}
		counters, err := s.applyCounter(ctx, postID, "like_count", 1)
		if err != nil {
			return false, Counters{}, err
		}
		s.publish(string(DeltaLike), counters)
		return true, counters, nil

	default:
		return false, Counters{}, err
	}
}

// RecordShare counts at most one share per (actor, post).
func (s *Service) RecordShare(ctx context.Context, actorID, postID string) (Counters, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO post_shares (id, post_id, user_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, uuid.NewString(), postID, actorID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Counters{}, ErrTargetNotFound
		}
		return Counters{}, err
	}
	if tag.RowsAffected() == 0 {
		return s.counters(ctx, postID)
	}

	counters, err := s.applyCounter(ctx, postID, "share_count", 1)
	if err != nil {
		return Counters{}, err
	}
	s.publish(string(DeltaShare), counters)
	return counters, nil
}

// applyCounter runs the single atomic increment and persists the recomputed
// score. GREATEST floors the counter at zero on decrement races.
func (s *Service) applyCounter(ctx context.Context, postID, column string, sign int) (Counters, error) {
	query := fmt.Sprintf(`
		UPDATE posts
		SET %s = GREATEST(%s + $2, 0), last_activity_at = now()
		WHERE id=$1 AND status NOT IN ('deleted','removed')
		RETURNING like_count, comment_count, share_count, view_count, created_at
	`, column, column)

	counters := Counters{PostID: postID}
	var createdAt time.Time
	err := s.db.QueryRow(ctx, query, postID, sign).
		Scan(&counters.LikeCount, &counters.CommentCount, &counters.ShareCount, &counters.ViewCount, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counters{}, ErrTargetNotFound
		}
		return Counters{}, err
	}

	counters.Score = RecomputeScore(counters.LikeCount, counters.CommentCount, counters.ShareCount, counters.ViewCount, createdAt, s.now())
	if _, err := s.db.Exec(ctx, `
		UPDATE posts SET engagement_score=$2 WHERE id=$1
	`, postID, counters.Score); err != nil {
		return Counters{}, err
	}
	return counters, nil
}

func (s *Service) counters(ctx context.Context, postID string) (Counters, error) {
	counters := Counters{PostID: postID}
	err := s.db.QueryRow(ctx, `
		SELECT like_count, comment_count, share_count, view_count, engagement_score
		FROM posts WHERE id=$1
	`, postID).Scan(&counters.LikeCount, &counters.CommentCount, &counters.ShareCount, &counters.ViewCount, &counters.Score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counters{}, ErrTargetNotFound
		}
		return Counters{}, err
	}
	return counters, nil
}

func (s *Service) resolvePost(ctx context.Context, target Target) (string, error) {
	switch target.Kind {
	case TargetPost:
		return target.ID, nil
	case TargetComment:
		var postID string
		err := s.db.QueryRow(ctx, `
			SELECT post_id FROM post_comments WHERE id=$1
		`, target.ID).Scan(&postID)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTargetNotFound
		}
		if err != nil {
			return "", err
		}
		return postID, nil
	default:
		return "", ErrUnknownTarget
	}
}

func (s *Service) publish(kind string, counters Counters) {
	metrics.EngagementEvents.WithLabelValues(kind).Inc()
	if s.hub != nil {
		s.hub.BroadcastCounters(counters.PostID, counters)
	}
}

func (s *Service) markSeen(ctx context.Context, viewerID, postID string) {
	if s.redis == nil {
		return
	}
	key := "seen:" + viewerID
	if err := s.redis.SAdd(ctx, key, postID).Err(); err != nil {
		log.Warn().Err(err).Str("viewer_id", viewerID).Msg("mark seen")
		return
	}
	_ = s.redis.Expire(ctx, key, seenSetTTL).Err()
}

func counterColumn(kind DeltaKind) (string, error) {
	switch kind {
	case DeltaLike:
		return "like_count", nil
	case DeltaComment:
		return "comment_count", nil
	case DeltaShare:
		return "share_count", nil
	default:
		return "", ErrUnknownDelta
	}
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
