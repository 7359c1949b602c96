package course

import (
	"time"

	"gorm.io/gorm"
)

// Payment status values for an enrollment. Access checks treat anything
// except PENDING as enrolled.
const (
	PaymentFree    = "FREE"
	PaymentPaid    = "PAID"
	PaymentPending = "PENDING"
)

// Enrollment types
const (
	EnrollmentFree = "FREE"
	EnrollmentPaid = "PAID"
)

// Enrollment tracks a user's enrollment in a course. At most one row per
// (user, course); enrollment creation is idempotent.
type Enrollment struct {
	gorm.Model
	UserID         uint      `json:"user_id" gorm:"uniqueIndex:idx_user_course_enrollment;not null"`
	CourseID       uint      `json:"course_id" gorm:"uniqueIndex:idx_user_course_enrollment;not null"`
	EnrollmentType string    `json:"enrollment_type" gorm:"default:'FREE'"`
	PaymentStatus  string    `json:"payment_status" gorm:"default:'FREE'"`
	EnrolledAt     time.Time `json:"enrolled_at"`
	IsDeleted      bool      `gorm:"default:false"`
}
