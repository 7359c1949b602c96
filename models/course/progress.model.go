package course

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CourseProgress is the durable per-user-per-course progress record. Created
// lazily on first lesson access or first completion, never deleted by the
// engine. CompletedLessons holds a JSON-encoded set of lesson IDs;
// Percentage is always recomputed from it on write.
type CourseProgress struct {
	gorm.Model
	UserID             uint           `json:"user_id" gorm:"uniqueIndex:idx_user_course_progress;not null"`
	CourseID           uint           `json:"course_id" gorm:"uniqueIndex:idx_user_course_progress;not null"`
	CompletedLessons   datatypes.JSON `json:"completed_lessons"`
	LastAccessedLesson uint           `json:"last_accessed_lesson" gorm:"default:0"`
	Percentage         int            `json:"percentage" gorm:"default:0"`
	TotalLessons       int            `json:"total_lessons" gorm:"default:0"`
}

// CompletedLessonIDs decodes the completed-lessons set. A missing or
// malformed column decodes as empty.
func (p *CourseProgress) CompletedLessonIDs() []uint {
	var ids []uint
	if len(p.CompletedLessons) == 0 {
		return ids
	}
	if err := json.Unmarshal(p.CompletedLessons, &ids); err != nil {
		return nil
	}
	return ids
}

// SetCompletedLessonIDs encodes the completed-lessons set.
func (p *CourseProgress) SetCompletedLessonIDs(ids []uint) {
	if ids == nil {
		ids = []uint{}
	}
	raw, _ := json.Marshal(ids)
	p.CompletedLessons = datatypes.JSON(raw)
}

// HasCompleted reports whether the lesson is in the completed set.
func (p *CourseProgress) HasCompleted(lessonID uint) bool {
	for _, id := range p.CompletedLessonIDs() {
		if id == lessonID {
			return true
		}
	}
	return false
}
