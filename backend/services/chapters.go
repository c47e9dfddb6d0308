package services

import (
	"context"
	"errors"
	"strings"

	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChapterService struct {
	db      *gorm.DB
	catalog *CatalogService
	log     *zap.SugaredLogger
}

func NewChapterService(db *gorm.DB, catalog *CatalogService, log *zap.SugaredLogger) *ChapterService {
	return &ChapterService{db: db, catalog: catalog, log: log.With("service", "ChapterService")}
}

type ChapterInput struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content"`
	Order   *int   `json:"order" validate:"omitempty,gte=0"`
}

type ChapterPatch struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content *string `json:"content"`
	Order   *int    `json:"order" validate:"omitempty,gte=0"`
}

func chapterOrder(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC").Order("created_at ASC") }

// GetChapters returns the chapters of a course in display order.
func (s *ChapterService) GetChapters(ctx context.Context, courseID string) ([]models.Chapter, error) {
	if _, err := s.catalog.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	var chapters []models.Chapter
	if err := chapterOrder(s.db.WithContext(ctx).Where("course_id = ?", courseID)).Find(&chapters).Error; err != nil {
		return nil, utils.InternalError("load chapters", err)
	}
	return chapters, nil
}

func (s *ChapterService) GetChapter(ctx context.Context, courseID, chapterID string) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := s.db.WithContext(ctx).Where("id = ? AND course_id = ?", chapterID, courseID).First(&chapter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("chapter %s not found", chapterID)
		}
		return nil, utils.InternalError("load chapter", err)
	}
	return &chapter, nil
}

// CreateChapter appends a chapter; without an explicit order it goes after the last one.
func (s *ChapterService) CreateChapter(ctx context.Context, courseID string, in ChapterInput) (*models.Chapter, error) {
	if errs := utils.ValidateStruct(in); len(errs) > 0 {
		return nil, utils.InvalidFields(errs)
	}
	if _, err := s.catalog.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}

	chapter := models.Chapter{
		CourseID: courseID,
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
	}
	if in.Order != nil {
		chapter.Order = *in.Order
	} else {
		var last struct{ Max *int }
		if err := s.db.WithContext(ctx).Model(&models.Chapter{}).
			Select("MAX(sort_order) AS max").Where("course_id = ?", courseID).Scan(&last).Error; err != nil {
			return nil, utils.InternalError("load chapter order", err)
		}
		if last.Max != nil {
			chapter.Order = *last.Max + 1
		} else {
			chapter.Order = 1
		}
	}

	if err := s.db.WithContext(ctx).Create(&chapter).Error; err != nil {
		return nil, utils.InternalError("create chapter", err)
	}
	return &chapter, nil
}

func (s *ChapterService) UpdateChapter(ctx context.Context, courseID, chapterID string, p ChapterPatch) (*models.Chapter, error) {
	if errs := utils.ValidateStruct(p); len(errs) > 0 {
		return nil, utils.InvalidFields(errs)
	}
	chapter, err := s.GetChapter(ctx, courseID, chapterID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if p.Title != nil {
		updates["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Content != nil {
		updates["content"] = *p.Content
	}
	if p.Order != nil {
		updates["sort_order"] = *p.Order
	}
	if len(updates) == 0 {
		return chapter, nil
	}
	if err := s.db.WithContext(ctx).Model(chapter).Updates(updates).Error; err != nil {
		return nil, utils.InternalError("update chapter", err)
	}
	return s.GetChapter(ctx, courseID, chapterID)
}

func (s *ChapterService) DeleteChapter(ctx context.Context, courseID, chapterID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND course_id = ?", chapterID, courseID).Delete(&models.Chapter{})
	if res.Error != nil {
		return utils.InternalError("delete chapter", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NotFoundError("chapter %s not found", chapterID)
	}
	return nil
}

// ReorderChapters assigns order 1..n following chapterIDs. Every id must belong to the course.
func (s *ChapterService) ReorderChapters(ctx context.Context, courseID string, chapterIDs []string) ([]models.Chapter, error) {
	if len(chapterIDs) == 0 {
		return nil, utils.ValidationErr("chapter ids are required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range chapterIDs {
			res := tx.Model(&models.Chapter{}).Where("id = ? AND course_id = ?", id, courseID).Update("sort_order", i+1)
			if res.Error != nil {
				return utils.InternalError("reorder chapters", res.Error)
			}
			if res.RowsAffected == 0 {
				return utils.NotFoundError("chapter %s not found", id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetChapters(ctx, courseID)
}
