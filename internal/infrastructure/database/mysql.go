package database

import (
	"fmt"
	"time"

	"kirato/internal/config"
	"kirato/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 连接
func InitMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		logrus.Fatalf("连接 MySQL 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatalf("获取底层 DB 失败: %v", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	// 老数据缺少新字段时由列默认值兜底，读侧不做硬失败
	err = db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.CreditTransaction{},
		&model.Subscription{},
		&model.Order{},
		&model.Conversation{},
		&model.ChatMessage{},
		&model.AutoReplyTask{},
		&model.OutboxMessage{},
	)
	if err != nil {
		logrus.Fatalf("自动迁移表结构失败: %v", err)
	}

	DB = db
	logrus.Info("MySQL 连接成功")
	return db
}
