package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
)

type Course struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	AcademyID          string    `gorm:"size:64;not null;uniqueIndex:idx_course_academy_slug;index" json:"academyId"`
	Status             string    `gorm:"size:16;not null;default:draft;index" json:"status"`
	Title              string    `gorm:"not null" json:"title"`
	Slug               string    `gorm:"size:160;not null;uniqueIndex:idx_course_academy_slug" json:"slug"`
	Instructor         string    `json:"instructor"`
	ThumbnailURL       string    `json:"thumbnailUrl"`
	Duration           string    `json:"duration"`
	EnrolledCount      int       `gorm:"not null;default:0" json:"enrolledCount"`
	Price              float64   `gorm:"not null;default:0" json:"price"`
	Category           string    `gorm:"index" json:"category"`
	Level              string    `gorm:"size:16" json:"level"`
	Description        string    `json:"description"`
	AboutCourse        string    `json:"aboutCourse"`
	LearningObjectives string    `json:"learningObjectives"`
	Chapters           []Chapter `gorm:"constraint:OnDelete:CASCADE" json:"chapters,omitempty"`
	CreatedAt          time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Chapter struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CourseID  string    `gorm:"size:36;not null;index" json:"courseId"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `json:"content"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ch *Chapter) BeforeCreate(tx *gorm.DB) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	return nil
}

var videoRefPattern = regexp.MustCompile(`\[video:([^\]\s]+)\]`)

// VideoRefs returns the video references embedded in chapter content as [video:<ref>] tokens.
func VideoRefs(content string) []string {
	matches := videoRefPattern.FindAllStringSubmatch(content, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

func ValidCourseStatus(status string) bool {
	return status == CourseStatusDraft || status == CourseStatusPublished
}
