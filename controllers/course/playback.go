package controllers

import (
	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	"lms/playback"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// loadLessonRef resolves a lesson into what the playback session needs:
// duration, the course's published lesson count, and whether this is the
// final lesson in course order.
func loadLessonRef(courseID, lessonID uint) (playback.LessonRef, bool) {
	var lessons []courseModels.Lesson
	if err := database.Database.Db.
		Where("course_id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).
		Order("order_index asc, id asc").
		Find(&lessons).Error; err != nil {
		return playback.LessonRef{}, false
	}

	for i, lesson := range lessons {
		if lesson.ID == lessonID {
			return playback.LessonRef{
				ID:           lesson.ID,
				DurationSec:  lesson.Duration,
				FinalLesson:  i == len(lessons)-1,
				TotalLessons: len(lessons),
			}, true
		}
	}
	return playback.LessonRef{}, false
}

func StartPlayback(c *fiber.Ctx) error {
	// Retrieve userId from JWT middleware
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	// Check if user exists
	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	// Retrieve validated request
	reqData, ok := c.Locals("validatedPlaybackStart").(*struct {
		CourseID uint `json:"course_id" validate:"required,gt=0"`
		LessonID uint `json:"lesson_id" validate:"required,gt=0"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ? AND is_published = ?", reqData.CourseID, false, true).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	lessonRef, found := loadLessonRef(reqData.CourseID, reqData.LessonID)
	if !found {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	// The session's credential fetch runs the enrollment gate; a
	// non-enrolled student ends up in the errored state with an
	// authorization error, never with a credential.
	session := Sessions.Start(c.Context(), userID, reqData.CourseID, lessonRef)

	// Record the access touch for resume state, but only when the gate let
	// the visit through: a student it turned away must not leave a
	// progress row behind.
	snap := session.Snapshot()
	if snap.ErrorKind != playback.KindAuthorization {
		ProgressStore.TouchAccess(c.Context(), userID, reqData.CourseID, reqData.LessonID)
		ProgressView.Invalidate(c.Context(), userID, reqData.CourseID)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Playback session started!", snap)
}

// getOwnedSession resolves the session path param and enforces ownership.
func getOwnedSession(c *fiber.Ctx) (*playback.Session, error) {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid session ID!", nil)
	}

	session, found := Sessions.Get(sessionID)
	if !found || session.UserID != userID {
		// Hide other users' sessions behind not-found
		return nil, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Playback session not found!", nil)
	}
	return session, nil
}

func SwitchLesson(c *fiber.Ctx) error {
	session, errResp := getOwnedSession(c)
	if session == nil {
		return errResp
	}

	reqData, ok := c.Locals("validatedLessonSwitch").(*struct {
		LessonID uint `json:"lesson_id" validate:"required,gt=0"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	lessonRef, found := loadLessonRef(session.CourseID, reqData.LessonID)
	if !found {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	session.StartLesson(c.Context(), lessonRef)

	snap := session.Snapshot()
	if snap.ErrorKind != playback.KindAuthorization {
		ProgressStore.TouchAccess(c.Context(), session.UserID, session.CourseID, reqData.LessonID)
		ProgressView.Invalidate(c.Context(), session.UserID, session.CourseID)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson switched!", snap)
}

func PlaybackEvent(c *fiber.Ctx) error {
	session, errResp := getOwnedSession(c)
	if session == nil {
		return errResp
	}

	reqData, ok := c.Locals("validatedPlaybackEvent").(*struct {
		Type     string  `json:"type" validate:"required,oneof=media_ready media_failed play pause position visibility_hidden visibility_visible"`
		Position float64 `json:"position" validate:"gte=0"`
		Duration float64 `json:"duration" validate:"gte=0"`
		Category string  `json:"category"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	switch reqData.Type {
	case "media_ready":
		session.MediaReady()
	case "media_failed":
		session.MediaFailed(reqData.Category)
	case "play":
		session.Play()
	case "pause":
		session.Pause()
	case "position":
		session.PositionUpdate(reqData.Position, reqData.Duration)
	case "visibility_hidden":
		session.VisibilityHidden()
	case "visibility_visible":
		session.VisibilityVisible()
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Event applied!", session.Snapshot())
}

func RetryPlayback(c *fiber.Ctx) error {
	session, errResp := getOwnedSession(c)
	if session == nil {
		return errResp
	}

	if err := session.Retry(c.Context()); err != nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Nothing to retry!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Playback retried!", session.Snapshot())
}

func ConfirmCompletion(c *fiber.Ctx) error {
	session, errResp := getOwnedSession(c)
	if session == nil {
		return errResp
	}

	if err := session.ConfirmCompletion(); err != nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Lesson is not ready to complete!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Completion confirmed!", session.Snapshot())
}

func GetPlaybackSession(c *fiber.Ctx) error {
	session, errResp := getOwnedSession(c)
	if session == nil {
		return errResp
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Playback session fetched!", session.Snapshot())
}

func ClosePlayback(c *fiber.Ctx) error {
	session, errResp := getOwnedSession(c)
	if session == nil {
		return errResp
	}

	Sessions.Close(session.ID)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Playback session closed!", nil)
}
