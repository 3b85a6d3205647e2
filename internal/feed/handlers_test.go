package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-pulsefeed/internal/social"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func viewerMiddleware(c *fiber.Ctx) error {
	c.Locals("user_id", "viewer-1")
	return c.Next()
}

func TestFeedHandler(t *testing.T) {
	mock := newFeedMock(t)
	now := time.Now()

	expectViewerContext(mock, "viewer-1", nil, nil)
	mock.ExpectQuery(`SELECT p.id, p.author_id, u.display_name`).
		WithArgs("viewer-1", []string{"public"}).
		WillReturnRows(pgxmock.NewRows(candidateColumns).
			AddRow(candidateRow("post-1", "author-1", now.Add(-time.Hour), 5)...))

	app := fiber.New()
	RegisterRoutes(app.Group("/feed"), NewService(mock, social.NewService(mock, nil), nil), viewerMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/feed/?strategy=trending&limit=10", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("feed status: %v", err)
	}

	var decoded struct {
		Items      []ScoredItem `json:"items"`
		Count      int          `json:"count"`
		NextCursor string       `json:"next_cursor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Count != 1 || len(decoded.Items) != 1 {
		t.Fatalf("unexpected page: %+v", decoded)
	}
	if decoded.Items[0].Blended <= 0 {
		t.Fatalf("expected blended score annotated")
	}
	if decoded.NextCursor == "" {
		t.Fatalf("expected next cursor")
	}
}

func TestFeedHandlerLimitValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/feed"), NewService(nil, nil, nil), viewerMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/feed/?limit=0", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit below range")
	}

	req = httptest.NewRequest(http.MethodGet, "/feed/?limit=500", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit above range")
	}
}

func TestFeedHandlerBadTimestamp(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/feed"), NewService(nil, nil, nil), viewerMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/feed/?posted_after=yesterday", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed timestamp")
	}
}

func TestFeedHandlerUnknownStrategyFallsBack(t *testing.T) {
	mock := newFeedMock(t)
	now := time.Now()

	expectViewerContext(mock, "viewer-1", nil, nil)
	mock.ExpectQuery(`SELECT p.id, p.author_id, u.display_name`).
		WithArgs("viewer-1", []string{"public"}).
		WillReturnRows(pgxmock.NewRows(candidateColumns).
			AddRow(candidateRow("post-1", "author-1", now, 0)...))

	app := fiber.New()
	RegisterRoutes(app.Group("/feed"), NewService(mock, social.NewService(mock, nil), nil), viewerMiddleware)

	// unknown strategy is not an error, it ranks with smart weights
	req := httptest.NewRequest(http.MethodGet, "/feed/?strategy=mystery", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fallback, got status %d", resp.StatusCode)
	}
}
