package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backend-pulsefeed/internal/shared/geo"
)

// candidateFetchLimit caps how many candidates one request scores. The
// filter orders by recency, so the cap trims the oldest tail first.
const candidateFetchLimit = 500

// SelectCandidates runs the visibility filter and returns the candidate
// items with the viewer's interaction flags attached. Restartable: each call
// re-queries, there is no server-side cursor object.
func (s *Service) SelectCandidates(ctx context.Context, viewer ViewerContext, f Filters, before time.Time) ([]Item, error) {
	args := []any{viewer.ViewerID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	privacy := []string{"public"}
	if f.Privacy != "" && f.Privacy != "public" {
		privacy = append(privacy, f.Privacy)
	}

	where := []string{
		"p.status = 'published'",
		"u.is_active",
		"p.privacy = ANY(" + arg(privacy) + ")",
		"(p.expires_at IS NULL OR p.expires_at > now())",
	}

	rankExpr := "0::float8"
	if f.Search != "" {
		q := arg(f.Search)
		rankExpr = "ts_rank(p.search_document, plainto_tsquery('english', " + q + "))::float8"
		where = append(where, "p.search_document @@ plainto_tsquery('english', "+q+")")
	}
	if len(f.PostTypes) > 0 {
		where = append(where, "p.post_type = ANY("+arg(f.PostTypes)+")")
	}
	if f.Category != "" {
		where = append(where, "p.category = "+arg(f.Category))
	}
	if len(f.Tags) > 0 {
		where = append(where, "p.tags && "+arg(f.Tags))
	}
	if f.AuthorID != "" {
		where = append(where, "p.author_id = "+arg(f.AuthorID))
	}
	if !f.IncludeSensitive {
		where = append(where, "NOT p.sensitive")
	}
	if f.MinEngagement > 0 {
		where = append(where, "p.engagement_score >= "+arg(f.MinEngagement))
	}
	if !f.PostedAfter.IsZero() {
		where = append(where, "p.created_at >= "+arg(f.PostedAfter))
	}
	if !f.PostedBefore.IsZero() {
		where = append(where, "p.created_at <= "+arg(f.PostedBefore))
	}
	// items without a stored location are never excluded by the geo filter;
	// a malformed point or radius disables it instead of failing the request
	if f.Geo != nil && f.Geo.RadiusKm > 0 && geo.ValidPoint(f.Geo.Lat, f.Geo.Lng) {
		where = append(where, "(p.location IS NULL OR ST_DWithin(p.location, ST_SetSRID(ST_MakePoint("+
			arg(f.Geo.Lng)+","+arg(f.Geo.Lat)+"), 4326)::geography, "+arg(f.Geo.RadiusKm*1000)+"))")
	}
	if !before.IsZero() {
		where = append(where, "p.created_at < "+arg(before))
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.author_id, u.display_name, u.is_verified, COALESCE(u.reputation,0),
		       p.post_type, COALESCE(p.category,''), COALESCE(p.tags,'{}'), p.privacy,
		       p.pinned, p.featured, p.sensitive, p.created_at, p.last_activity_at,
		       p.like_count, p.comment_count, p.share_count, p.view_count, p.engagement_score,
		       p.location IS NOT NULL, COALESCE(ST_Y(p.location::geometry),0), COALESCE(ST_X(p.location::geometry),0),
		       %s,
		       EXISTS(SELECT 1 FROM post_reactions r WHERE r.post_id = p.id AND r.user_id = $1),
		       COALESCE((SELECT r.reaction_id FROM post_reactions r WHERE r.post_id = p.id AND r.user_id = $1), ''),
		       EXISTS(SELECT 1 FROM post_saves sv WHERE sv.post_id = p.id AND sv.user_id = $1),
		       EXISTS(SELECT 1 FROM post_shares sh WHERE sh.post_id = p.id AND sh.user_id = $1),
		       EXISTS(SELECT 1 FROM post_views v WHERE v.post_id = p.id AND v.viewer_id = $1)
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE %s
		ORDER BY p.created_at DESC
		LIMIT %d
	`, rankExpr, strings.Join(where, "\n\t\t  AND "), candidateFetchLimit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var hasLocation bool
		var lat, lng float64
		if err := rows.Scan(
			&it.ID, &it.AuthorID, &it.AuthorName, &it.AuthorVerified, &it.AuthorReputation,
			&it.PostType, &it.Category, &it.Tags, &it.Privacy,
			&it.Pinned, &it.Featured, &it.Sensitive, &it.CreatedAt, &it.LastActivityAt,
			&it.LikeCount, &it.CommentCount, &it.ShareCount, &it.ViewCount, &it.EngagementScore,
			&hasLocation, &lat, &lng,
			&it.SearchRank,
			&it.Viewer.HasLiked, &it.Viewer.ReactionID, &it.Viewer.HasSaved, &it.Viewer.HasShared, &it.Viewer.HasViewed,
		); err != nil {
			return nil, err
		}
		if hasLocation {
			it.Lat, it.Lng = &lat, &lng
			if viewer.Lat != nil && viewer.Lng != nil {
				d := geo.HaversineKm(*viewer.Lat, *viewer.Lng, lat, lng)
				it.DistanceKm = &d
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
