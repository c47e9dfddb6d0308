package services

import (
	"context"
	"errors"
	"time"

	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentService tracks which courses a user has access to.
type EnrollmentService struct {
	db      *gorm.DB
	catalog *CatalogService
	log     *zap.SugaredLogger
}

func NewEnrollmentService(db *gorm.DB, catalog *CatalogService, log *zap.SugaredLogger) *EnrollmentService {
	return &EnrollmentService{db: db, catalog: catalog, log: log.With("service", "EnrollmentService")}
}

type UserData struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"displayName"`
	CreatedAt       time.Time `json:"createdAt"`
	EnrolledCourses []string  `json:"enrolledCourses"`
}

// AddCourseToUser adds courseID to the user's enrollments. Adding an existing
// enrollment is a no-op; a new enrollment increments the course counter in the
// same transaction. added reports whether a row was inserted.
func (s *EnrollmentService) AddCourseToUser(ctx context.Context, userID, courseID string) (added bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, userID); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Enrollment{UserID: userID, CourseID: courseID})
		if res.Error != nil {
			return utils.InternalError("add enrollment", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		added = true
		return s.catalog.IncrementEnrolledCount(ctx, tx, courseID)
	})
	if err != nil {
		return false, err
	}
	if added {
		s.log.Infow("user enrolled", "user_id", userID, "course_id", courseID)
	}
	return added, nil
}

// RemoveCourseFromUser drops an enrollment and decrements the counter only if one existed.
func (s *EnrollmentService) RemoveCourseFromUser(ctx context.Context, userID, courseID string) (removed bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&models.Enrollment{})
		if res.Error != nil {
			return utils.InternalError("remove enrollment", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return s.catalog.DecrementEnrolledCount(ctx, tx, courseID)
	})
	return removed, err
}

func (s *EnrollmentService) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).Count(&cnt).Error; err != nil {
		return false, utils.InternalError("check enrollment", err)
	}
	return cnt > 0, nil
}

// EnsureNotEnrolled fails with alreadyEnrolled naming the first course the user already owns.
func (s *EnrollmentService) EnsureNotEnrolled(ctx context.Context, userID string, courseIDs ...string) error {
	if userID == "" || len(courseIDs) == 0 {
		return nil
	}
	var owned []models.Enrollment
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id IN ?", userID, courseIDs).
		Limit(1).Find(&owned).Error; err != nil {
		return utils.InternalError("check enrollment", err)
	}
	if len(owned) > 0 {
		return utils.CodedError(fiber.StatusConflict, utils.CodeAlreadyEnrolled, "already enrolled in course %s", owned[0].CourseID)
	}
	return nil
}

// GetUserData returns the profile and enrolled course ids, or notFound.
func (s *EnrollmentService) GetUserData(ctx context.Context, userID string) (*UserData, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("user %s not found", userID)
		}
		return nil, utils.InternalError("load user", err)
	}
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ?", userID).Order("created_at ASC").Pluck("course_id", &ids).Error; err != nil {
		return nil, utils.InternalError("load enrollments", err)
	}
	return &UserData{
		ID:              user.ID,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		CreatedAt:       user.CreatedAt,
		EnrolledCourses: ids,
	}, nil
}

// GetEnrolledCourses returns the courses the user is enrolled in, most recent enrollment first.
func (s *EnrollmentService) GetEnrolledCourses(ctx context.Context, userID string) ([]models.Course, error) {
	var courses []models.Course
	if err := s.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.user_id = ?", userID).
		Order("enrollments.created_at DESC").
		Find(&courses).Error; err != nil {
		return nil, utils.InternalError("load enrolled courses", err)
	}
	return courses, nil
}

func ensureUser(db *gorm.DB, userID string) error {
	var cnt int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&cnt).Error; err != nil {
		return utils.InternalError("load user", err)
	}
	if cnt == 0 {
		return utils.NotFoundError("user %s not found", userID)
	}
	return nil
}
