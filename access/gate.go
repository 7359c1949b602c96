package access

import (
	"context"
	"errors"
	"fmt"
	courseModels "lms/models/course"
	"lms/playback"

	"gorm.io/gorm"
)

// Gate answers whether a student may access a course's media, and where that
// media lives. No caching, every call reflects the latest write.
type Gate struct {
	db *gorm.DB
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

// IsEnrolled returns true iff an enrollment row exists for (userID, courseID)
// and its payment is not pending. A pending payment means the student has
// started but not finished a paid enrollment and must not reach the media.
func (g *Gate) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	var enrollment courseModels.Enrollment
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return enrollment.PaymentStatus != courseModels.PaymentPending, nil
}

// MediaPrefix returns the course's media path prefix on the delivery domain.
// Courses persisted before the prefix write fall back to the conventional
// per-course layout.
func (g *Gate) MediaPrefix(ctx context.Context, courseID uint) (string, error) {
	var course courseModels.Course
	err := g.db.WithContext(ctx).
		Select("id", "media_prefix").
		Where("id = ? AND is_deleted = ?", courseID, false).
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", playback.ErrNotFound
		}
		return "", err
	}
	if course.MediaPrefix == "" {
		return fmt.Sprintf("media/courses/%d", courseID), nil
	}
	return course.MediaPrefix, nil
}
