package controllers

import (
	"errors"
	"fmt"
	"lms/config"
	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	"lms/playback"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LessonWithProgress decorates a lesson with the student's completion state
type LessonWithProgress struct {
	courseModels.Lesson
	IsCompleted  bool `json:"is_completed"`
	LastAccessed bool `json:"last_accessed"`
}

func GetCourseLessons(c *fiber.Ctx) error {
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

	// Retrieve validated course ID
	courseID := c.Locals("courseID").(int)

	// Check if course exists and is published
	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	// Lesson content is gated behind enrollment
	enrolled, err := Gate.IsEnrolled(c.Context(), userID, uint(courseID))
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to check enrollment!", nil)
	}
	if !enrolled {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	// Fetch lessons in course order
	var lessons []courseModels.Lesson
	if err := database.Database.Db.
		Where("course_id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).
		Order("order_index asc, id asc").
		Find(&lessons).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch lessons!", nil)
	}

	// Enrich with the student's progress view
	record := getProgressView(c, userID, uint(courseID), len(lessons))

	result := make([]LessonWithProgress, len(lessons))
	for i, lesson := range lessons {
		result[i] = LessonWithProgress{Lesson: lesson}
		if record != nil {
			result[i].IsCompleted = record.HasCompleted(lesson.ID)
			result[i].LastAccessed = record.LastAccessedLesson == lesson.ID
		}
	}

	response := map[string]interface{}{
		"lessons": result,
	}
	if record != nil {
		response["progress"] = record
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lessons fetched successfully!", response)
}

func AccessLesson(c *fiber.Ctx) error {
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

	// Retrieve validated IDs
	courseID := c.Locals("courseID").(int)
	lessonID := c.Locals("lessonID").(int)

	// Check if course and lesson exist
	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}
	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ? AND is_published = ?", lessonID, courseID, false, true).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	// The issuer runs the enrollment gate before any signing work
	credential, err := Issuer.Issue(c.Context(), userID, uint(courseID))
	if err != nil {
		return playbackErrorResponse(c, err)
	}

	// Best-effort access touch; a failure is logged inside the store and
	// never blocks playback
	ProgressStore.TouchAccess(c.Context(), userID, uint(courseID), uint(lessonID))
	ProgressView.Invalidate(c.Context(), userID, uint(courseID))

	// Cookie scope and the video URL share the course's media prefix with
	// the credential the issuer just signed
	mediaPrefix := course.MediaPrefix
	if mediaPrefix == "" {
		mediaPrefix = fmt.Sprintf("media/courses/%d", courseID)
	}

	// Deliver the cookie set alongside the manifest
	for name, value := range credential.Cookies {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    value,
			Domain:   config.AppConfig.MediaDomain,
			Path:     "/" + mediaPrefix,
			Expires:  credential.ExpiresAt,
			Secure:   true,
			HTTPOnly: true,
		})
	}

	manifest := map[string]interface{}{
		"video_url":  fmt.Sprintf("https://%s/%s/%s", config.AppConfig.MediaDomain, mediaPrefix, lesson.VideoKey),
		"url_token":  credential.URLToken,
		"cookies":    credential.Cookies,
		"expires_at": credential.ExpiresAt.Format(time.RFC3339),
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson access granted!", manifest)
}

// playbackErrorResponse maps issuer errors onto the fixed user-facing
// taxonomy. Not-enrolled must surface as Forbidden, distinct from not-found
// and from server trouble.
func playbackErrorResponse(c *fiber.Ctx, err error) error {
	kind := playback.Classify(err)
	Log.Warn("lesson access denied", "kind", kind, "error", err)
	switch {
	case errors.Is(err, playback.ErrForbidden):
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, playback.UserMessage(kind), nil)
	case errors.Is(err, playback.ErrNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, playback.UserMessage(kind), nil)
	case errors.Is(err, playback.ErrConnectivity):
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, playback.UserMessage(kind), nil)
	default:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, playback.UserMessage(playback.KindUnknown), nil)
	}
}
