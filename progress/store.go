package progress

import (
	"context"
	"errors"
	"lms/logger"
	courseModels "lms/models/course"
	"math"

	"gorm.io/gorm"
)

// Store owns the durable course_progress records. It is the source of truth
// for completion and resume state.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStore(db *gorm.DB, baseLog *logger.Logger) *Store {
	return &Store{db: db, log: baseLog.With("component", "ProgressStore")}
}

// Percentage computes the completion percentage for k of n lessons, rounded
// to the nearest integer.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// TouchAccess records that the student opened a lesson. Only
// last_accessed_lesson (and updated_at) are written unconditionally; every
// other field is seeded only when the row is created, so a touch never
// clobbers existing completion state. Best-effort: failures are logged and
// swallowed, a lost touch is tolerable telemetry loss.
func (s *Store) TouchAccess(ctx context.Context, userID, courseID, lessonID uint) {
	row := courseModels.CourseProgress{}
	seed := courseModels.CourseProgress{
		UserID:   userID,
		CourseID: courseID,
	}
	seed.SetCompletedLessonIDs(nil)

	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Attrs(seed).
		FirstOrCreate(&row).Error
	if err != nil {
		s.log.Warn("progress touch failed", "user_id", userID, "course_id", courseID, "error", err)
		return
	}

	if err := s.db.WithContext(ctx).
		Model(&row).
		Update("last_accessed_lesson", lessonID).Error; err != nil {
		s.log.Warn("progress touch failed", "user_id", userID, "course_id", courseID, "error", err)
	}
}

// MarkComplete adds lessonID to the student's completed set and recomputes
// the percentage. Re-adding an already-complete lesson leaves the set
// unchanged but still refreshes last_accessed_lesson and updated_at, so the
// call is idempotent in outcome. Concurrent calls for the same student and
// course are last-writer-wins on the full row, which converges because the
// mutation is a set union.
func (s *Store) MarkComplete(ctx context.Context, userID, courseID, lessonID uint, totalLessons int) (*courseModels.CourseProgress, error) {
	row := courseModels.CourseProgress{}
	seed := courseModels.CourseProgress{
		UserID:       userID,
		CourseID:     courseID,
		TotalLessons: totalLessons,
	}
	seed.SetCompletedLessonIDs(nil)

	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Attrs(seed).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, err
	}

	ids := row.CompletedLessonIDs()
	found := false
	for _, id := range ids {
		if id == lessonID {
			found = true
			break
		}
	}
	if !found {
		ids = append(ids, lessonID)
	}

	row.SetCompletedLessonIDs(ids)
	row.TotalLessons = totalLessons
	row.Percentage = Percentage(len(ids), totalLessons)
	row.LastAccessedLesson = lessonID

	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Get returns the student's progress record, or a zero-progress default when
// none exists yet. Absence of a row is a normal state, never an error.
func (s *Store) Get(ctx context.Context, userID, courseID uint, totalLessons int) (*courseModels.CourseProgress, error) {
	row := courseModels.CourseProgress{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fresh := courseModels.CourseProgress{
				UserID:       userID,
				CourseID:     courseID,
				TotalLessons: totalLessons,
			}
			fresh.SetCompletedLessonIDs(nil)
			return &fresh, nil
		}
		return nil, err
	}
	return &row, nil
}
