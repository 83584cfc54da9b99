package service

import (
	"os"
	"testing"

	"kirato/internal/config"
	"kirato/internal/model"
	"kirato/pkg/idgen"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	idgen.Init(1)
	os.Exit(m.Run())
}

// newTestDB 每个测试一个独立的内存库
// 单连接约束：内存库的多个连接各自是一个空库，必须压到 1 个连接上
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.CreditTransaction{},
		&model.Subscription{},
		&model.Order{},
		&model.Conversation{},
		&model.ChatMessage{},
		&model.AutoReplyTask{},
		&model.OutboxMessage{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			TokenTTLMinutes: 60,
			ResetTTLMinutes: 30,
			BcryptCost:      4,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				CreditEvents: "kirato.credit.events",
				OrderEvents:  "kirato.order.events",
				ChatEvents:   "kirato.chat.events",
			},
		},
		Business: config.BusinessConfig{
			WelcomeBonus:         50,
			LedgerCap:            100,
			RenewOnRead:          true,
			AutoReplyDelaySecond: 0,
			PresenceTTLSecond:    45,
			MaxRetryCount:        5,
			DefaultLocale:        "en",
		},
	}
}
