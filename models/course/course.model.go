package course

import "gorm.io/gorm"

// Course represents a learning course
type Course struct {
	gorm.Model
	Title        string `json:"title"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	Price        uint   `json:"price" gorm:"default:0"` // 0 means free
	ThumbnailURL string `json:"thumbnail_url"`
	MediaPrefix  string `json:"-"` // path prefix of this course's media on the delivery domain
	IsPublished  bool   `json:"is_published" gorm:"default:false"`
	IsDeleted    bool   `gorm:"default:false"`
}

// Lesson represents a single video lesson within a course
type Lesson struct {
	gorm.Model
	CourseID    uint   `json:"course_id" gorm:"index;not null"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoKey    string `json:"-"`                           // object key under the course media prefix
	Duration    int    `json:"duration" gorm:"default:0"`   // seconds
	OrderIndex  int    `json:"order_index" gorm:"default:0"`
	IsPublished bool   `json:"is_published" gorm:"default:false"`
	IsDeleted   bool   `gorm:"default:false"`
}
