package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kirato/internal/config"
	"kirato/internal/model"
	"kirato/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrWrongPassword = errors.New("邮箱或密码错误")
	ErrTokenInvalid  = errors.New("登录凭证无效")
)

// AuthService 会话与身份服务
// 对外统一暴露"用户+角色"视图，底层错误都转成用户可读的提示
type AuthService struct {
	db            *gorm.DB
	cfg           *config.Config
	userRepo      *repository.UserRepository
	walletService *WalletService
}

func NewAuthService(db *gorm.DB, cfg *config.Config, walletService *WalletService) *AuthService {
	return &AuthService{
		db:            db,
		cfg:           cfg,
		userRepo:      repository.NewUserRepository(db),
		walletService: walletService,
	}
}

// Claims JWT 负载
type Claims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// SignUp 注册
// 注册即建钱包（首次建钱包会发一次性欢迎积分），并生成邮箱验证 token
func (s *AuthService) SignUp(ctx context.Context, email, password, displayName, role string) (*AuthResult, error) {
	if role != model.RoleBuyer && role != model.RoleSeller {
		role = model.RoleBuyer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost())
	if err != nil {
		return nil, fmt.Errorf("密码处理失败: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         role,
		VerifyToken:  uuid.NewString(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if _, err := s.walletService.GetOrCreateWallet(ctx, user.ID); err != nil {
		return nil, err
	}

	// 邮件网关不在本服务内，验证链接走事件流投递，这里只留痕
	logrus.Infof("注册成功，待邮箱验证: userID=%d, email=%s", user.ID, email)

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: token}, nil
}

// SignIn 登录
// 用户不存在和密码错误返回同一个错误，不给撞库方任何区分信息
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrWrongPassword
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: token}, nil
}

// SendPasswordReset 生成密码重置 token
// 邮箱不存在也返回成功，避免暴露注册状态
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(time.Duration(s.cfg.Auth.ResetTTLMinutes) * time.Minute)
	if err := s.userRepo.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return err
	}

	logrus.Infof("密码重置凭证已生成: userID=%d", user.ID)
	return nil
}

// ResetPassword 按重置 token 更新密码
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost())
	if err != nil {
		return fmt.Errorf("密码处理失败: %w", err)
	}
	return s.userRepo.ResetPassword(ctx, token, string(hash), time.Now())
}

// VerifyEmail 按验证 token 完成邮箱验证
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	return s.userRepo.MarkEmailVerified(ctx, token)
}

// Me 当前用户视图
func (s *AuthService) Me(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// issueToken 签发 JWT
func (s *AuthService) issueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.Auth.TokenTTLMinutes) * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("签发凭证失败: %w", err)
	}
	return signed, nil
}

// ParseToken 校验并解析 JWT（认证中间件用）
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *AuthService) bcryptCost() int {
	if s.cfg.Auth.BcryptCost > 0 {
		return s.cfg.Auth.BcryptCost
	}
	return bcrypt.DefaultCost
}
