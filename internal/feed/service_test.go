package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-pulsefeed/internal/social"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
)

func expectViewerContext(mock pgxmock.PgxPoolIface, viewerID string, following []string, interests []string) {
	followRows := pgxmock.NewRows([]string{"following_id"})
	for _, id := range following {
		followRows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT following_id FROM user_follows`).
		WithArgs(viewerID).
		WillReturnRows(followRows)
	mock.ExpectQuery(`SELECT COALESCE\(interests, '{}'\) FROM users`).
		WithArgs(viewerID).
		WillReturnRows(pgxmock.NewRows([]string{"interests"}).AddRow(interests))
}

func TestFeedHappyPath(t *testing.T) {
	mock := newFeedMock(t)
	now := time.Now()

	expectViewerContext(mock, "viewer-1", []string{"author-1"}, nil)
	mock.ExpectQuery(`SELECT p.id, p.author_id, u.display_name`).
		WithArgs("viewer-1", []string{"public"}).
		WillReturnRows(pgxmock.NewRows(candidateColumns).
			AddRow(candidateRow("by-stranger", "author-2", now.Add(-time.Hour), 3)...).
			AddRow(candidateRow("by-followed", "author-1", now.Add(-time.Hour), 3)...))

	svc := NewService(mock, social.NewService(mock, nil), nil)
	page, err := svc.Feed(context.Background(), "viewer-1", Filters{Strategy: StrategyFollowing, Limit: 10})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page))
	}
	if page[0].ID != "by-followed" {
		t.Fatalf("expected followed author ranked first, got %s", page[0].ID)
	}
	if page[0].Scores.Affinity != 80 || page[1].Scores.Affinity != 30 {
		t.Fatalf("unexpected affinity scores: %v vs %v", page[0].Scores.Affinity, page[1].Scores.Affinity)
	}
	if page[0].Blended <= page[1].Blended {
		t.Fatalf("expected strictly higher blended score first")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFeedInvalidLimit(t *testing.T) {
	svc := NewService(nil, nil, nil)

	if _, err := svc.Feed(context.Background(), "viewer-1", Filters{Limit: 0}); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := svc.Feed(context.Background(), "viewer-1", Filters{Limit: 101}); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestFeedBadCursor(t *testing.T) {
	svc := NewService(nil, nil, nil)

	if _, err := svc.Feed(context.Background(), "viewer-1", Filters{Limit: 10, Cursor: "%%%"}); !errors.Is(err, ErrBadCursor) {
		t.Fatalf("expected ErrBadCursor, got %v", err)
	}
}

func TestFeedCursorForcesOffsetZero(t *testing.T) {
	mock := newFeedMock(t)
	before := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	expectViewerContext(mock, "viewer-1", nil, nil)
	mock.ExpectQuery(`p.created_at < `).
		WithArgs("viewer-1", []string{"public"}, before).
		WillReturnRows(pgxmock.NewRows(candidateColumns).
			AddRow(candidateRow("post-old", "author-1", before.Add(-time.Hour), 0)...))

	svc := NewService(mock, social.NewService(mock, nil), nil)
	// offset 3 would skip past the only row if the cursor didn't force it to 0
	page, err := svc.Feed(context.Background(), "viewer-1", Filters{
		Limit:  10,
		Offset: 3,
		Cursor: EncodeCursor(Cursor{Before: before}),
	})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected cursor to override offset, got %d items", len(page))
	}
}

func TestFeedDegradesWhenSocialGraphDown(t *testing.T) {
	mock := newFeedMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT following_id FROM user_follows`).
		WithArgs("viewer-1").
		WillReturnError(errFeed)
	mock.ExpectQuery(`SELECT COALESCE\(interests, '{}'\) FROM users`).
		WithArgs("viewer-1").
		WillReturnError(errFeed)
	mock.ExpectQuery(`SELECT p.id, p.author_id, u.display_name`).
		WithArgs("viewer-1", []string{"public"}).
		WillReturnRows(pgxmock.NewRows(candidateColumns).
			AddRow(candidateRow("post-1", "author-1", now, 0)...))

	svc := NewService(mock, social.NewService(mock, nil), nil)
	page, err := svc.Feed(context.Background(), "viewer-1", Filters{Limit: 10})
	if err != nil {
		t.Fatalf("expected degradation, not failure: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page))
	}
	if page[0].Scores.Affinity != 30 {
		t.Fatalf("expected lowest affinity tier, got %v", page[0].Scores.Affinity)
	}
}

func TestFeedExcludeSeen(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.SAdd("seen:viewer-1", "post-seen")

	mock := newFeedMock(t)
	now := time.Now()

	viewedRow := candidateRow("post-viewed", "author-1", now.Add(-time.Hour), 0)
	viewedRow[27] = true // has_viewed

	expectViewerContext(mock, "viewer-1", nil, nil)
	mock.ExpectQuery(`SELECT p.id, p.author_id, u.display_name`).
		WithArgs("viewer-1", []string{"public"}).
		WillReturnRows(pgxmock.NewRows(candidateColumns).
			AddRow(candidateRow("post-seen", "author-1", now, 0)...).
			AddRow(viewedRow...).
			AddRow(candidateRow("post-new", "author-2", now, 0)...))

	svc := NewService(mock, social.NewService(mock, nil), client)
	page, err := svc.Feed(context.Background(), "viewer-1", Filters{Limit: 10, ExcludeSeen: true})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(page) != 1 || page[0].ID != "post-new" {
		t.Fatalf("expected only unseen item, got %+v", page)
	}
}

func TestFeedQueryErrorPropagates(t *testing.T) {
	mock := newFeedMock(t)

	expectViewerContext(mock, "viewer-1", nil, nil)
	mock.ExpectQuery(`SELECT p.id, p.author_id, u.display_name`).
		WithArgs("viewer-1", []string{"public"}).
		WillReturnError(errFeed)

	svc := NewService(mock, social.NewService(mock, nil), nil)
	if _, err := svc.Feed(context.Background(), "viewer-1", Filters{Limit: 10}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFeedRankingStability(t *testing.T) {
	now := time.Now()
	run := func() []ScoredItem {
		mock := newFeedMock(t)
		expectViewerContext(mock, "viewer-1", nil, nil)
		mock.ExpectQuery(`SELECT p.id, p.author_id, u.display_name`).
			WithArgs("viewer-1", []string{"public"}).
			WillReturnRows(pgxmock.NewRows(candidateColumns).
				AddRow(candidateRow("a", "author-1", now.Add(-3*time.Hour), 2)...).
				AddRow(candidateRow("b", "author-2", now.Add(-2*time.Hour), 2)...).
				AddRow(candidateRow("c", "author-3", now.Add(-1*time.Hour), 9)...))

		svc := NewService(mock, social.NewService(mock, nil), nil)
		svc.now = func() time.Time { return now }
		page, err := svc.Feed(context.Background(), "viewer-1", Filters{Strategy: StrategySmart, Limit: 10})
		if err != nil {
			t.Fatalf("feed: %v", err)
		}
		return page
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("page sizes differ")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ordering differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestNextCursor(t *testing.T) {
	now := time.Now()
	page := []ScoredItem{
		{Item: Item{ID: "newer", CreatedAt: now}},
		{Item: Item{ID: "older", CreatedAt: now.Add(-time.Hour)}},
	}

	token := NextCursor(page)
	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cursor.Before.Equal(page[1].CreatedAt) {
		t.Fatalf("expected oldest created_at in cursor")
	}

	if NextCursor(nil) != "" {
		t.Fatalf("expected empty cursor for empty page")
	}
}
