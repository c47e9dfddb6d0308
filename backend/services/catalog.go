package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"coursemarket/backend/config"
	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService reads and administers the academy's courses.
type CatalogService struct {
	db        *gorm.DB
	academyID string
	log       *zap.SugaredLogger
}

func NewCatalogService(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *CatalogService {
	return &CatalogService{db: db, academyID: cfg.AcademyID, log: log.With("service", "CatalogService")}
}

// CourseInput is the full set of editable course fields.
type CourseInput struct {
	Title              string   `json:"title" validate:"required,max=200"`
	Slug               string   `json:"slug" validate:"omitempty,max=160"`
	Instructor         string   `json:"instructor" validate:"required"`
	ThumbnailURL       string   `json:"thumbnailUrl" validate:"omitempty,url"`
	Duration           string   `json:"duration" validate:"required"`
	Price              *float64 `json:"price" validate:"required,gte=0"`
	Category           string   `json:"category" validate:"required"`
	Level              string   `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Description        string   `json:"description" validate:"required"`
	AboutCourse        string   `json:"aboutCourse"`
	LearningObjectives string   `json:"learningObjectives"`
	Status             string   `json:"status" validate:"omitempty,oneof=draft published"`
}

// CoursePatch updates only the fields that are set.
type CoursePatch struct {
	Title              *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Slug               *string  `json:"slug" validate:"omitempty,min=1,max=160"`
	Instructor         *string  `json:"instructor"`
	ThumbnailURL       *string  `json:"thumbnailUrl"`
	Duration           *string  `json:"duration"`
	Price              *float64 `json:"price" validate:"omitempty,gte=0"`
	Category           *string  `json:"category"`
	Level              *string  `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Description        *string  `json:"description"`
	AboutCourse        *string  `json:"aboutCourse"`
	LearningObjectives *string  `json:"learningObjectives"`
}

type CourseFilter struct {
	Query    string
	Category string
	Level    string
}

func (s *CatalogService) scoped(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).Where("academy_id = ?", s.academyID)
}

func newestFirst(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }

func sortCoursesNewestFirst(courses []models.Course) {
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
}

// GetCourses returns published courses, newest first.
func (s *CatalogService) GetCourses(ctx context.Context) ([]models.Course, error) {
	return s.SearchCourses(ctx, CourseFilter{})
}

// SearchCourses filters published courses by free text, category and level.
func (s *CatalogService) SearchCourses(ctx context.Context, f CourseFilter) ([]models.Course, error) {
	filters := func(db *gorm.DB) *gorm.DB {
		q := s.scoped(ctx, db).Where("status = ?", models.CourseStatusPublished)
		if term := strings.TrimSpace(f.Query); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			q = q.Where("lower(title) LIKE ? OR lower(instructor) LIKE ? OR lower(description) LIKE ?", like, like, like)
		}
		if f.Category != "" {
			q = q.Where("category = ?", f.Category)
		}
		if f.Level != "" {
			q = q.Where("level = ?", f.Level)
		}
		return q
	}
	var courses []models.Course
	degraded, err := utils.FindWithFallback(ctx, s.db, s.log, &courses, filters, newestFirst)
	if err != nil {
		return nil, utils.InternalError("load courses", err)
	}
	if degraded {
		sortCoursesNewestFirst(courses)
	}
	return courses, nil
}

// GetAllCourses returns every course regardless of status, newest first.
func (s *CatalogService) GetAllCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	degraded, err := utils.FindWithFallback(ctx, s.db, s.log, &courses, func(db *gorm.DB) *gorm.DB {
		return s.scoped(ctx, db)
	}, newestFirst)
	if err != nil {
		return nil, utils.InternalError("load courses", err)
	}
	if degraded {
		sortCoursesNewestFirst(courses)
	}
	return courses, nil
}

func (s *CatalogService) GetCourseByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := s.scoped(ctx, s.db).Where("id = ?", id).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("course %s not found", id)
		}
		return nil, utils.InternalError("load course", err)
	}
	return &course, nil
}

func (s *CatalogService) GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error) {
	var course models.Course
	if err := s.scoped(ctx, s.db).Where("slug = ?", slug).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("course %q not found", slug)
		}
		return nil, utils.InternalError("load course", err)
	}
	return &course, nil
}

func (s *CatalogService) CreateCourse(ctx context.Context, in CourseInput) (*models.Course, error) {
	if errs := utils.ValidateStruct(in); len(errs) > 0 {
		return nil, utils.InvalidFields(errs)
	}
	status := in.Status
	if status == "" {
		status = models.CourseStatusDraft
	}
	base := in.Slug
	if base == "" {
		base = in.Title
	}
	slug, err := utils.UniqueSlug(ctx, s.db, "courses", s.academyID, base, "")
	if err != nil {
		return nil, utils.InternalError("generate slug", err)
	}

	course := models.Course{
		AcademyID:          s.academyID,
		Status:             status,
		Title:              strings.TrimSpace(in.Title),
		Slug:               slug,
		Instructor:         in.Instructor,
		ThumbnailURL:       in.ThumbnailURL,
		Duration:           in.Duration,
		Price:              *in.Price,
		Category:           in.Category,
		Level:              in.Level,
		Description:        in.Description,
		AboutCourse:        in.AboutCourse,
		LearningObjectives: in.LearningObjectives,
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, utils.InternalError("create course", err)
	}
	s.log.Infow("course created", "course_id", course.ID, "slug", course.Slug)
	return &course, nil
}

func (s *CatalogService) UpdateCourse(ctx context.Context, id string, p CoursePatch) (*models.Course, error) {
	if errs := utils.ValidateStruct(p); len(errs) > 0 {
		return nil, utils.InvalidFields(errs)
	}
	course, err := s.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		course.Title = strings.TrimSpace(*p.Title)
	}
	if p.Slug != nil && *p.Slug != course.Slug {
		slug, err := utils.UniqueSlug(ctx, s.db, "courses", s.academyID, *p.Slug, course.ID)
		if err != nil {
			return nil, utils.InternalError("generate slug", err)
		}
		course.Slug = slug
	}
	if p.Instructor != nil {
		course.Instructor = *p.Instructor
	}
	if p.ThumbnailURL != nil {
		course.ThumbnailURL = *p.ThumbnailURL
	}
	if p.Duration != nil {
		course.Duration = *p.Duration
	}
	if p.Price != nil {
		course.Price = *p.Price
	}
	if p.Category != nil {
		course.Category = *p.Category
	}
	if p.Level != nil {
		course.Level = *p.Level
	}
	if p.Description != nil {
		course.Description = *p.Description
	}
	if p.AboutCourse != nil {
		course.AboutCourse = *p.AboutCourse
	}
	if p.LearningObjectives != nil {
		course.LearningObjectives = *p.LearningObjectives
	}

	course.UpdatedAt = time.Now().UTC()
	// enrolled_count and status have their own operations
	if err := s.db.WithContext(ctx).Model(course).
		Select("title", "slug", "instructor", "thumbnail_url", "duration", "price", "category", "level",
			"description", "about_course", "learning_objectives", "updated_at").
		Updates(course).Error; err != nil {
		return nil, utils.InternalError("update course", err)
	}
	return s.GetCourseByID(ctx, id)
}

// UpdateCourseStatus toggles a course between draft and published.
func (s *CatalogService) UpdateCourseStatus(ctx context.Context, id, status string) (*models.Course, error) {
	if !models.ValidCourseStatus(status) {
		return nil, utils.ValidationErr("invalid course status %q", status)
	}
	res := s.scoped(ctx, s.db).Model(&models.Course{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, utils.InternalError("update course status", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NotFoundError("course %s not found", id)
	}
	return s.GetCourseByID(ctx, id)
}

// DeleteCourse removes all chapters of the course, then the course itself.
func (s *CatalogService) DeleteCourse(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := s.scoped(ctx, tx).Where("id = ?", id).First(&course).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFoundError("course %s not found", id)
			}
			return utils.InternalError("load course", err)
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.Chapter{}).Error; err != nil {
			return utils.InternalError("delete chapters", err)
		}
		if err := tx.Delete(&course).Error; err != nil {
			return utils.InternalError("delete course", err)
		}
		s.log.Infow("course deleted", "course_id", id)
		return nil
	})
}

// IncrementEnrolledCount adds one to the course counter in the store. tx may be nil.
func (s *CatalogService) IncrementEnrolledCount(ctx context.Context, tx *gorm.DB, id string) error {
	return s.adjustEnrolledCount(ctx, tx, id, gorm.Expr("enrolled_count + ?", 1))
}

// DecrementEnrolledCount subtracts one from the course counter, never going below zero. tx may be nil.
func (s *CatalogService) DecrementEnrolledCount(ctx context.Context, tx *gorm.DB, id string) error {
	return s.adjustEnrolledCount(ctx, tx, id, gorm.Expr("CASE WHEN enrolled_count > 0 THEN enrolled_count - 1 ELSE 0 END"))
}

func (s *CatalogService) adjustEnrolledCount(ctx context.Context, tx *gorm.DB, id string, expr interface{}) error {
	db := tx
	if db == nil {
		db = s.db
	}
	res := db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).UpdateColumn("enrolled_count", expr)
	if res.Error != nil {
		return utils.InternalError("update enrolled count", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NotFoundError("course %s not found", id)
	}
	return nil
}

type CategoryCount struct {
	Category string `json:"category"`
	Courses  int64  `json:"courses"`
}

// Categories lists the categories of published courses with their course counts.
func (s *CatalogService) Categories(ctx context.Context) ([]CategoryCount, error) {
	out := []CategoryCount{}
	if err := s.scoped(ctx, s.db).Model(&models.Course{}).
		Select("category, COUNT(*) AS courses").
		Where("status = ?", models.CourseStatusPublished).
		Group("category").Order("courses DESC, category ASC").
		Scan(&out).Error; err != nil {
		return nil, utils.InternalError("load categories", err)
	}
	return out, nil
}
