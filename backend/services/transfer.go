package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	snapshotVersion = 1
	importedSuffix  = " (Imported)"
)

type ChapterSnapshot struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// CourseSnapshot is the portable export format of one course.
type CourseSnapshot struct {
	Version            int               `json:"version"`
	Title              string            `json:"title" validate:"required"`
	Slug               string            `json:"slug,omitempty"`
	Instructor         string            `json:"instructor" validate:"required"`
	ThumbnailURL       string            `json:"thumbnailUrl,omitempty"`
	Duration           string            `json:"duration" validate:"required"`
	Price              *float64          `json:"price" validate:"required,gte=0"`
	Category           string            `json:"category" validate:"required"`
	Level              string            `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Description        string            `json:"description" validate:"required"`
	AboutCourse        string            `json:"aboutCourse" validate:"required"`
	LearningObjectives string            `json:"learningObjectives" validate:"required"`
	Status             string            `json:"status,omitempty"`
	Chapters           []ChapterSnapshot `json:"chapters" validate:"dive"`
}

type Backup struct {
	Version    int              `json:"version"`
	AcademyID  string           `json:"academyId"`
	ExportedAt time.Time        `json:"exportedAt"`
	Courses    []CourseSnapshot `json:"courses"`
}

type RestoreResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// TransferService moves courses in and out as JSON snapshots.
type TransferService struct {
	db      *gorm.DB
	catalog *CatalogService
	log     *zap.SugaredLogger
}

func NewTransferService(db *gorm.DB, catalog *CatalogService, log *zap.SugaredLogger) *TransferService {
	return &TransferService{db: db, catalog: catalog, log: log.With("service", "TransferService")}
}

func ParseSnapshot(raw []byte) (*CourseSnapshot, error) {
	var snap CourseSnapshot
	if err := sonic.Unmarshal(raw, &snap); err != nil {
		return nil, utils.ValidationErr("course file is not valid JSON: %v", err)
	}
	return &snap, nil
}

func ParseBackup(raw []byte) (*Backup, error) {
	var b Backup
	if err := sonic.Unmarshal(raw, &b); err != nil {
		return nil, utils.ValidationErr("backup file is not valid JSON: %v", err)
	}
	return &b, nil
}

func snapshotOf(course *models.Course, chapters []models.Chapter) CourseSnapshot {
	price := course.Price
	snap := CourseSnapshot{
		Version:            snapshotVersion,
		Title:              course.Title,
		Slug:               course.Slug,
		Instructor:         course.Instructor,
		ThumbnailURL:       course.ThumbnailURL,
		Duration:           course.Duration,
		Price:              &price,
		Category:           course.Category,
		Level:              course.Level,
		Description:        course.Description,
		AboutCourse:        course.AboutCourse,
		LearningObjectives: course.LearningObjectives,
		Status:             course.Status,
		Chapters:           make([]ChapterSnapshot, 0, len(chapters)),
	}
	for _, ch := range chapters {
		snap.Chapters = append(snap.Chapters, ChapterSnapshot{Title: ch.Title, Content: ch.Content, Order: ch.Order})
	}
	return snap
}

func (s *TransferService) ExportCourse(ctx context.Context, id string) (*CourseSnapshot, error) {
	course, err := s.catalog.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var chapters []models.Chapter
	if err := chapterOrder(s.db.WithContext(ctx).Where("course_id = ?", id)).Find(&chapters).Error; err != nil {
		return nil, utils.InternalError("load chapters", err)
	}
	snap := snapshotOf(course, chapters)
	return &snap, nil
}

// ImportCourse creates a new draft course from a snapshot. The title gets an
// " (Imported)" marker and the slug is regenerated.
func (s *TransferService) ImportCourse(ctx context.Context, snap *CourseSnapshot) (*models.Course, error) {
	course, err := s.create(ctx, snap, strings.TrimSpace(snap.Title)+importedSuffix, models.CourseStatusDraft)
	if err != nil {
		return nil, err
	}
	s.log.Infow("course imported", "course_id", course.ID, "chapters", len(course.Chapters))
	return course, nil
}

func (s *TransferService) ExportBackup(ctx context.Context) (*Backup, error) {
	courses, err := s.catalog.GetAllCourses(ctx)
	if err != nil {
		return nil, err
	}
	backup := &Backup{
		Version:    snapshotVersion,
		AcademyID:  s.catalog.academyID,
		ExportedAt: time.Now().UTC(),
		Courses:    make([]CourseSnapshot, 0, len(courses)),
	}
	for i := range courses {
		var chapters []models.Chapter
		if err := chapterOrder(s.db.WithContext(ctx).Where("course_id = ?", courses[i].ID)).Find(&chapters).Error; err != nil {
			return nil, utils.InternalError("load chapters", err)
		}
		backup.Courses = append(backup.Courses, snapshotOf(&courses[i], chapters))
	}
	return backup, nil
}

// RestoreBackup recreates every course of the backup whose slug is not taken.
// Courses keep their title and status; existing slugs are reported as skipped.
func (s *TransferService) RestoreBackup(ctx context.Context, b *Backup) (*RestoreResult, error) {
	if b == nil || len(b.Courses) == 0 {
		return nil, utils.ValidationErr("backup has no courses")
	}
	for i := range b.Courses {
		if errs := utils.ValidateStruct(b.Courses[i]); len(errs) > 0 {
			return nil, utils.ValidationErr("course %d: %v", i+1, utils.InvalidFields(errs))
		}
	}

	out := &RestoreResult{Created: []string{}, Skipped: []string{}}
	for i := range b.Courses {
		snap := &b.Courses[i]
		if snap.Slug != "" {
			if _, err := s.catalog.GetCourseBySlug(ctx, snap.Slug); err == nil {
				out.Skipped = append(out.Skipped, snap.Slug)
				continue
			} else if !utils.HasCode(err, utils.CodeNotFound) {
				return out, err
			}
		}
		status := snap.Status
		if !models.ValidCourseStatus(status) {
			status = models.CourseStatusDraft
		}
		course, err := s.create(ctx, snap, strings.TrimSpace(snap.Title), status)
		if err != nil {
			return out, err
		}
		out.Created = append(out.Created, course.ID)
	}
	s.log.Infow("backup restored", "created", len(out.Created), "skipped", len(out.Skipped))
	return out, nil
}

func (s *TransferService) create(ctx context.Context, snap *CourseSnapshot, title, status string) (*models.Course, error) {
	if snap == nil {
		return nil, utils.ValidationErr("course snapshot is empty")
	}
	if errs := utils.ValidateStruct(snap); len(errs) > 0 {
		return nil, utils.InvalidFields(errs)
	}
	base := snap.Slug
	if base == "" {
		base = snap.Title
	}
	slug, err := utils.UniqueSlug(ctx, s.db, "courses", s.catalog.academyID, base, "")
	if err != nil {
		return nil, utils.InternalError("generate slug", err)
	}

	course := models.Course{
		AcademyID:          s.catalog.academyID,
		Status:             status,
		Title:              title,
		Slug:               slug,
		Instructor:         snap.Instructor,
		ThumbnailURL:       snap.ThumbnailURL,
		Duration:           snap.Duration,
		Price:              *snap.Price,
		Category:           snap.Category,
		Level:              snap.Level,
		Description:        snap.Description,
		AboutCourse:        snap.AboutCourse,
		LearningObjectives: snap.LearningObjectives,
	}
	for i, ch := range snap.Chapters {
		order := ch.Order
		if order <= 0 {
			order = i + 1
		}
		course.Chapters = append(course.Chapters, models.Chapter{Title: ch.Title, Content: ch.Content, Order: order})
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, utils.InternalError(fmt.Sprintf("create course %q", title), err)
	}
	return &course, nil
}
