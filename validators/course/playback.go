package courseValidator

import (
	"lms/middleware"

	"github.com/gofiber/fiber/v2"
)

func StartPlayback() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			CourseID uint `json:"course_id" validate:"required,gt=0"`
			LessonID uint `json:"lesson_id" validate:"required,gt=0"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if err := validate.Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validationErrors(err))
		}

		c.Locals("validatedPlaybackStart", reqData)
		return c.Next()
	}
}

func SwitchLesson() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			LessonID uint `json:"lesson_id" validate:"required,gt=0"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if err := validate.Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validationErrors(err))
		}

		c.Locals("validatedLessonSwitch", reqData)
		return c.Next()
	}
}

func PlaybackEvent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Type     string  `json:"type" validate:"required,oneof=media_ready media_failed play pause position visibility_hidden visibility_visible"`
			Position float64 `json:"position" validate:"gte=0"`
			Duration float64 `json:"duration" validate:"gte=0"`
			Category string  `json:"category"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if err := validate.Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validationErrors(err))
		}

		c.Locals("validatedPlaybackEvent", reqData)
		return c.Next()
	}
}
