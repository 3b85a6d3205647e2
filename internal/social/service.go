package social

import (
	"context"
	"time"

	"backend-pulsefeed/internal/db"

	"github.com/redis/go-redis/v9"
)

const followCacheTTL = 5 * time.Minute

// Service reads the follow graph and author profiles. Both are owned by
// external subsystems; nothing here writes back except the redis cache.
type Service struct {
	db    db.Querier
	redis *redis.Client
}

func NewService(db db.Querier, redisClient *redis.Client) *Service {
	return &Service{db: db, redis: redisClient}
}

// FollowingSet returns the ids the user follows, preferring the redis cache.
func (s *Service) FollowingSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	if s.redis != nil {
		cached, err := s.redis.SMembers(ctx, followKey(userID)).Result()
		if err == nil && len(cached) > 0 {
			return toSet(cached), nil
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT following_id FROM user_follows WHERE follower_id=$1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if s.redis != nil && len(ids) > 0 {
		members := make([]any, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		if err := s.redis.SAdd(ctx, followKey(userID), members...).Err(); err == nil {
			_ = s.redis.Expire(ctx, followKey(userID), followCacheTTL).Err()
		}
	}
	return toSet(ids), nil
}

// Interests returns the user's declared interest tags, empty when unset.
func (s *Service) Interests(ctx context.Context, userID string) ([]string, error) {
	var interests []string
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(interests, '{}') FROM users WHERE id=$1
	`, userID).Scan(&interests)
	if err != nil {
		return nil, err
	}
	return interests, nil
}

// Author loads the profile fields affinity scoring depends on.
func (s *Service) Author(ctx context.Context, id string) (Author, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, display_name, is_verified, COALESCE(reputation,0), is_active
		FROM users WHERE id=$1
	`, id)
	var a Author
	if err := row.Scan(&a.ID, &a.DisplayName, &a.Verified, &a.Reputation, &a.Active); err != nil {
		return Author{}, err
	}
	return a, nil
}

func followKey(userID string) string {
	return "following:" + userID
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
