package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"coursemarket/backend/config"
	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminService is the admin roster of the configured academy.
type AdminService struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.SugaredLogger
}

func NewAdminService(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *AdminService {
	return &AdminService{db: db, cfg: cfg, log: log.With("service", "AdminService")}
}

type AdminInfo struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AddedAt     time.Time `json:"addedAt"`
}

// VerifyAcademySetup checks the academy id is configured and makes sure its row exists.
func (s *AdminService) VerifyAcademySetup(ctx context.Context) error {
	if err := config.VerifyAcademySetup(s.cfg); err != nil {
		return utils.NewAppError(fiber.StatusServiceUnavailable, utils.CodeUnavailable, err)
	}
	academy := models.Academy{ID: s.cfg.AcademyID, Name: s.cfg.AcademyName}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&academy).Error; err != nil {
		return utils.InternalError("ensure academy", err)
	}
	return nil
}

func (s *AdminService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.AcademyAdmin{}).
		Where("academy_id = ? AND user_id = ?", s.cfg.AcademyID, userID).
		Count(&cnt).Error; err != nil {
		return false, utils.InternalError("check admin", err)
	}
	return cnt > 0, nil
}

// AddAdmin grants admin rights to the user registered with email.
func (s *AdminService) AddAdmin(ctx context.Context, email string) (*AdminInfo, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, utils.ValidationErr("email is required")
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("academy_id = ? AND email = ?", s.cfg.AcademyID, email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.CodedError(fiber.StatusNotFound, utils.CodeUserNotFound, "no user registered with %s", email)
		}
		return nil, utils.InternalError("find user", err)
	}

	entry := models.AcademyAdmin{AcademyID: s.cfg.AcademyID, UserID: user.ID}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return nil, utils.InternalError("add admin", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.CodedError(fiber.StatusConflict, utils.CodeAlreadyAdmin, "%s is already an admin", email)
	}
	s.log.Infow("admin added", "user_id", user.ID, "email", email)
	return &AdminInfo{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName, AddedAt: entry.CreatedAt}, nil
}

// RemoveAdmin revokes admin rights. Admins cannot remove themselves.
func (s *AdminService) RemoveAdmin(ctx context.Context, adminID, actingUserID string) error {
	if adminID == actingUserID {
		return utils.CodedError(fiber.StatusBadRequest, utils.CodeSelfRemoval, "you cannot remove yourself as admin")
	}
	res := s.db.WithContext(ctx).
		Where("academy_id = ? AND user_id = ?", s.cfg.AcademyID, adminID).
		Delete(&models.AcademyAdmin{})
	if res.Error != nil {
		return utils.InternalError("remove admin", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NotFoundError("admin %s not found", adminID)
	}
	s.log.Infow("admin removed", "user_id", adminID, "by", actingUserID)
	return nil
}

func (s *AdminService) ListAdmins(ctx context.Context) ([]AdminInfo, error) {
	out := []AdminInfo{}
	if err := s.db.WithContext(ctx).Table("academy_admins").
		Select("academy_admins.user_id, users.email, users.display_name, academy_admins.created_at AS added_at").
		Joins("JOIN users ON users.id = academy_admins.user_id").
		Where("academy_admins.academy_id = ?", s.cfg.AcademyID).
		Order("academy_admins.created_at ASC").
		Scan(&out).Error; err != nil {
		return nil, utils.InternalError("list admins", err)
	}
	return out, nil
}

// EnsureBootstrapAdmin makes the user an admin when their email is the
// configured bootstrap address and the academy has no admins yet.
func (s *AdminService) EnsureBootstrapAdmin(ctx context.Context, user *models.User) error {
	if s.cfg.BootstrapAdminEmail == "" || !strings.EqualFold(user.Email, s.cfg.BootstrapAdminEmail) {
		return nil
	}
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.AcademyAdmin{}).
		Where("academy_id = ?", s.cfg.AcademyID).
		Count(&cnt).Error; err != nil {
		return utils.InternalError("count admins", err)
	}
	if cnt > 0 {
		s.log.Warnw("bootstrap admin ignored, academy already has admins", "user_id", user.ID)
		return nil
	}
	_, err := s.AddAdmin(ctx, user.Email)
	if utils.HasCode(err, utils.CodeAlreadyAdmin) {
		return nil
	}
	return err
}
