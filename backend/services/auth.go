package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"coursemarket/backend/config"
	"coursemarket/backend/models"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const resetTokenTTL = time.Hour

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes reset tokens to the log instead of sending mail.
type LogMailer struct {
	Log *zap.SugaredLogger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Log.Infow("password reset requested", "email", email, "token", token)
	return nil
}

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	admins *AdminService
	mailer Mailer
	log    *zap.SugaredLogger
}

func NewAuthService(db *gorm.DB, cfg *config.Config, admins *AdminService, mailer Mailer, log *zap.SugaredLogger) *AuthService {
	return &AuthService{db: db, cfg: cfg, admins: admins, mailer: mailer, log: log.With("service", "AuthService")}
}

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"displayName" validate:"max=120"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", utils.InternalError("hash password", err)
	}
	return string(hashed), nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if errs := utils.ValidateStruct(in); errs != nil {
		return nil, utils.InvalidFields(errs)
	}

	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&cnt).Error; err != nil {
		return nil, utils.InternalError("check email", err)
	}
	if cnt > 0 {
		return nil, utils.CodedError(fiber.StatusConflict, utils.CodeConflict, "email %s is already registered", in.Email)
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		AcademyID:    s.cfg.AcademyID,
		Email:        in.Email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hashed,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, utils.InternalError("create user", err)
	}
	if s.admins != nil {
		if err := s.admins.EnsureBootstrapAdmin(ctx, &user); err != nil {
			s.log.Errorw("bootstrap admin failed", "user_id", user.ID, "error", err)
		}
	}
	s.log.Infow("user registered", "user_id", user.ID)
	return s.issue(&user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if errs := utils.ValidateStruct(in); errs != nil {
		return nil, utils.InvalidFields(errs)
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", in.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.CodedError(fiber.StatusUnauthorized, utils.CodeUnauthorized, "invalid credentials")
		}
		return nil, utils.InternalError("find user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, utils.CodedError(fiber.StatusUnauthorized, utils.CodeUnauthorized, "invalid credentials")
	}
	return s.issue(&user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateJWTToken(user.ID, user.Email, s.cfg)
	if err != nil {
		return nil, utils.InternalError("generate token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Logout revokes the token until it expires.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := utils.ParseJWTToken(token, s.cfg)
	if err != nil {
		return err
	}
	expires := claims.Expiry
	if expires.IsZero() {
		expires = time.Now().Add(72 * time.Hour)
	}
	rec := models.RevokedToken{TokenHash: utils.HashToken(token), ExpiresAt: expires.UTC()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return utils.InternalError("revoke token", err)
	}
	return nil
}

func (s *AuthService) IsRevoked(ctx context.Context, token string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("token_hash = ?", utils.HashToken(token)).Count(&cnt).Error; err != nil {
		return false, utils.InternalError("check revoked token", err)
	}
	return cnt > 0, nil
}

// PurgeExpiredTokens deletes revocations and reset tokens that can no longer be used.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RevokedToken{})
	if res.Error != nil {
		return 0, utils.InternalError("purge revoked tokens", res.Error)
	}
	resets := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.PasswordReset{})
	if resets.Error != nil {
		return res.RowsAffected, utils.InternalError("purge reset tokens", resets.Error)
	}
	return res.RowsAffected + resets.RowsAffected, nil
}

// ChangePassword re-authenticates with the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 || len(next) > 72 {
		return utils.ValidationErr("new password must be 8 to 72 characters")
	}
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return utils.CodedError(fiber.StatusUnauthorized, utils.CodeUnauthorized, "current password is incorrect")
	}
	hashed, err := hashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hashed).Error; err != nil {
		return utils.InternalError("update password", err)
	}
	s.log.Infow("password changed", "user_id", userID)
	return nil
}

// RequestPasswordReset issues a one-hour reset token. Unknown emails succeed
// silently so the endpoint does not reveal which addresses are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return utils.ValidationErr("email is required")
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return utils.InternalError("find user", err)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return utils.InternalError("generate reset token", err)
	}
	token := hex.EncodeToString(buf)
	reset := models.PasswordReset{Token: token, UserID: user.ID, ExpiresAt: time.Now().Add(resetTokenTTL).UTC()}
	if err := s.db.WithContext(ctx).Create(&reset).Error; err != nil {
		return utils.InternalError("store reset token", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return utils.NewAppError(fiber.StatusBadGateway, utils.CodeUnavailable, err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, next string) error {
	if len(next) < 8 || len(next) > 72 {
		return utils.ValidationErr("new password must be 8 to 72 characters")
	}
	hashed, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset models.PasswordReset
		if err := tx.Where("token = ?", token).First(&reset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ValidationErr("reset link is invalid")
			}
			return utils.InternalError("load reset token", err)
		}
		if reset.UsedAt != nil || time.Now().After(reset.ExpiresAt) {
			return utils.ValidationErr("reset link has expired")
		}
		if err := tx.Model(&models.User{}).Where("id = ?", reset.UserID).Update("password_hash", hashed).Error; err != nil {
			return utils.InternalError("update password", err)
		}
		now := time.Now().UTC()
		if err := tx.Model(&reset).Update("used_at", &now).Error; err != nil {
			return utils.InternalError("consume reset token", err)
		}
		s.log.Infow("password reset", "user_id", reset.UserID)
		return nil
	})
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("user %s not found", userID)
		}
		return nil, utils.InternalError("load user", err)
	}
	return &user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > 120 {
		return nil, utils.ValidationErr("display name is too long")
	}
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("display_name", displayName).Error; err != nil {
		return nil, utils.InternalError("update profile", err)
	}
	user.DisplayName = displayName
	return user, nil
}
