package feed

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		viewerID, _ := c.Locals("user_id").(string)

		f, err := parseFilters(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		page, err := svc.Feed(c.Context(), viewerID, f)
		if err != nil {
			if errors.Is(err, ErrInvalidLimit) || errors.Is(err, ErrBadCursor) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.JSON(fiber.Map{
			"items":       page,
			"count":       len(page),
			"next_cursor": NextCursor(page),
		})
	})
}

func parseFilters(c *fiber.Ctx) (Filters, error) {
	f := Filters{
		Strategy:         Strategy(c.Query("strategy", string(StrategySmart))),
		Category:         c.Query("category"),
		AuthorID:         c.Query("author_id"),
		Privacy:          c.Query("privacy"),
		Search:           c.Query("q"),
		Cursor:           c.Query("cursor"),
		IncludeSensitive: c.QueryBool("include_sensitive"),
		ExcludeSeen:      c.QueryBool("exclude_seen"),
		Limit:            c.QueryInt("limit", 20),
		Offset:           c.QueryInt("offset", 0),
	}

	if tags := c.Query("tags"); tags != "" {
		f.Tags = splitCSV(tags)
	}
	if types := c.Query("types"); types != "" {
		f.PostTypes = splitCSV(types)
	}
	if v := c.Query("min_engagement"); v != "" {
		f.MinEngagement, _ = strconv.ParseFloat(v, 64)
	}

	// a half-specified or unparseable geo filter is ignored, not rejected
	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" && lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		radius, _ := strconv.ParseFloat(c.Query("radius_km", "25"), 64)
		if latErr == nil && lngErr == nil {
			f.Geo = &GeoFilter{Lat: lat, Lng: lng, RadiusKm: radius}
		}
	}

	if v := c.Query("posted_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filters{}, errors.New("posted_after must be RFC3339")
		}
		f.PostedAfter = t
	}
	if v := c.Query("posted_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filters{}, errors.New("posted_before must be RFC3339")
		}
		f.PostedBefore = t
	}

	return f, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
