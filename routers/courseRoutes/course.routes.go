package courseRoutes

import (
	controllers "lms/controllers/course"
	"lms/middleware"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up all user-facing course routes
func SetupCourseRoutes(app *fiber.App) {
	courseGroup := app.Group("/course")

	// Course catalog (published courses)
	courseGroup.Get("/list", middleware.JWTMiddleware, validators.CourseList(), controllers.GetAllCourses)
	courseGroup.Get("/:id", middleware.JWTMiddleware, validators.GetCourseDetail(), controllers.GetCourseDetails)

	// Enrollment
	courseGroup.Post("/:id/enroll", middleware.JWTMiddleware, validators.EnrollCourse(), controllers.EnrollInCourse)

	// Lesson listing and access (for enrolled users)
	courseGroup.Get("/:id/lessons", middleware.JWTMiddleware, validators.GetCourseLessons(), controllers.GetCourseLessons)
	courseGroup.Post("/:id/lesson/:lesson_id/access", middleware.JWTMiddleware, validators.AccessLesson(), controllers.AccessLesson)

	// Progress tracking
	courseGroup.Get("/:id/progress", middleware.JWTMiddleware, validators.GetCourseProgress(), controllers.GetUserProgress)

	// Reviews
	courseGroup.Post("/:id/review", middleware.JWTMiddleware, validators.SubmitReview(), controllers.SubmitReview)
	courseGroup.Get("/:id/reviews", middleware.JWTMiddleware, validators.GetCourseReviews(), controllers.GetCourseReviews)

	// Admin course management
	courseGroup.Post("/create", middleware.JWTMiddleware, middleware.RequireRole("ADMIN"), validators.CreateCourse(), controllers.CreateCourse)
	courseGroup.Post("/:id/lesson", middleware.JWTMiddleware, middleware.RequireRole("ADMIN"), validators.AddLesson(), controllers.AddLesson)

	// User enrollments
	userGroup := app.Group("/user")
	userGroup.Get("/enrollments", middleware.JWTMiddleware, validators.GetUserEnrollments(), controllers.GetEnrollments)

	// Playback sessions
	playbackGroup := app.Group("/playback", middleware.JWTMiddleware)
	playbackGroup.Post("/session", validators.StartPlayback(), controllers.StartPlayback)
	playbackGroup.Get("/session/:id", controllers.GetPlaybackSession)
	playbackGroup.Post("/session/:id/lesson", validators.SwitchLesson(), controllers.SwitchLesson)
	playbackGroup.Post("/session/:id/events", validators.PlaybackEvent(), controllers.PlaybackEvent)
	playbackGroup.Post("/session/:id/retry", controllers.RetryPlayback)
	playbackGroup.Post("/session/:id/confirm", controllers.ConfirmCompletion)
	playbackGroup.Delete("/session/:id", controllers.ClosePlayback)
}
