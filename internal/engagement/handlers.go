package engagement

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/reactions", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			TargetKind string `json:"target_kind"`
			TargetID   string `json:"target_id"`
			ReactionID string `json:"reaction_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.TargetID == "" || body.ReactionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "target_id and reaction_id required")
		}
		if body.TargetKind == "" {
			body.TargetKind = string(TargetPost)
		}

		actorID, _ := c.Locals("user_id").(string)
		active, counters, err := svc.RecordReaction(c.Context(), actorID, Target{Kind: TargetKind(body.TargetKind), ID: body.TargetID}, body.ReactionID)
		if err != nil {
			return engagementError(err)
		}
		return c.JSON(fiber.Map{"active": active, "counters": counters})
	})

	r.Post("/views", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			PostID       string `json:"post_id"`
			DurationSecs int    `json:"duration_secs"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.PostID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "post_id required")
		}

		viewerID, _ := c.Locals("user_id").(string)
		counters, first, err := svc.RecordView(c.Context(), body.PostID, viewerID, time.Now(), body.DurationSecs)
		if err != nil {
			return engagementError(err)
		}
		return c.JSON(fiber.Map{"first_view_today": first, "counters": counters})
	})

	r.Post("/shares", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			PostID string `json:"post_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.PostID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "post_id required")
		}

		actorID, _ := c.Locals("user_id").(string)
		counters, err := svc.RecordShare(c.Context(), actorID, body.PostID)
		if err != nil {
			return engagementError(err)
		}
		return c.JSON(fiber.Map{"counters": counters})
	})
}

func engagementError(err error) error {
	switch {
	case errors.Is(err, ErrTargetNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownTarget), errors.Is(err, ErrUnknownDelta), errors.Is(err, ErrBadSign):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
