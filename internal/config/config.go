package config

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CreditEvents string `mapstructure:"credit_events"`
	OrderEvents  string `mapstructure:"order_events"`
	ChatEvents   string `mapstructure:"chat_events"`
}

type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
	ResetTTLMinutes int    `mapstructure:"reset_ttl_minutes"`
	BcryptCost      int    `mapstructure:"bcrypt_cost"`
}

type BusinessConfig struct {
	WelcomeBonus         int64  `mapstructure:"welcome_bonus"`           // 新钱包一次性欢迎积分
	LedgerCap            int    `mapstructure:"ledger_cap"`              // 每用户保留的流水条数
	RenewOnRead          bool   `mapstructure:"renew_on_read"`           // 读取订阅/钱包时是否顺带做续费检查
	RenewalCron          string `mapstructure:"renewal_cron"`            // 续费扫描 cron 表达式
	AutoReplyDelaySecond int    `mapstructure:"auto_reply_delay_second"` // AI 自动回复延迟
	PresenceTTLSecond    int    `mapstructure:"presence_ttl_second"`     // 卖家在线心跳 TTL
	MaxRetryCount        int    `mapstructure:"max_retry_count"`         // outbox 最大重试次数
	DefaultLocale        string `mapstructure:"default_locale"`          // 文案兜底语言
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		logrus.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		logrus.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
