package model

import (
	"time"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User 用户表
// 密码使用 bcrypt 哈希存储；邮箱验证 / 密码重置通过一次性 token 完成
type User struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email          string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"type:varchar(128);not null" json:"-"`
	DisplayName    string     `gorm:"type:varchar(64);not null" json:"display_name"`
	Role           string     `gorm:"type:varchar(10);not null;default:buyer" json:"role"`
	EmailVerified  bool       `gorm:"not null;default:false" json:"email_verified"`
	VerifyToken    string     `gorm:"type:varchar(36);index" json:"-"`
	ResetToken     string     `gorm:"type:varchar(36);index" json:"-"`
	ResetExpiresAt *time.Time `json:"-"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
