package repository

import (
	"context"
	"errors"
	"time"

	"kirato/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrEmailTaken        = errors.New("邮箱已被注册")
	ErrResetTokenInvalid = errors.New("重置凭证无效或已过期")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	existing, err := r.GetByEmail(ctx, user.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// MarkEmailVerified 按验证 token 完成邮箱验证并作废 token
func (r *UserRepository) MarkEmailVerified(ctx context.Context, verifyToken string) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("verify_token = ?", verifyToken).
		Updates(map[string]interface{}{
			"email_verified": true,
			"verify_token":   "",
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"reset_token":      token,
			"reset_expires_at": expiresAt,
		}).Error
}

// ResetPassword 按重置 token 更新密码哈希并作废 token
// token 过期同样视为无效
func (r *UserRepository) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("reset_token = ? AND reset_token != '' AND reset_expires_at > ?", token, now).
		Updates(map[string]interface{}{
			"password_hash":    passwordHash,
			"reset_token":      "",
			"reset_expires_at": nil,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResetTokenInvalid
	}
	return nil
}
