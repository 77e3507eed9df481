package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	GiftCard  GiftCardConfig  `mapstructure:"giftcard"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Business  BusinessConfig  `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PointsChanged string `mapstructure:"points_changed"`
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpireMinutes int    `mapstructure:"expire_minutes"`
	CookieName    string `mapstructure:"cookie_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LedgerConfig 积分账本策略常量与限额
type LedgerConfig struct {
	// 兑换时 1 积分折算的人民币金额
	RedeemCnyRate  string `mapstructure:"redeem_cny_rate"`
	RechargeMax    int64  `mapstructure:"recharge_max"`
	RechargeDayMax int64  `mapstructure:"recharge_day_max"`
	RedeemMax      int64  `mapstructure:"redeem_max"`
	RedeemDayMax   int64  `mapstructure:"redeem_day_max"`
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds"`
	LockRetryMs    int    `mapstructure:"lock_retry_ms"`
	LockMaxRetries int    `mapstructure:"lock_max_retries"`
	QRCodeBaseURL  string `mapstructure:"qr_code_base_url"`
}

type GiftCardConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

type BusinessConfig struct {
	RechargeOrderTimeoutMinutes int `mapstructure:"recharge_order_timeout_minutes"`
	MaxRetryCount               int `mapstructure:"max_retry_count"`
	OutboxIntervalMs            int `mapstructure:"outbox_interval_ms"`
}

// LoadConfig 加载配置文件，环境变量（AGRIMATCH_ 前缀）优先于文件
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AGRIMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("kafka.topic.points_changed", "points_changed")
	v.SetDefault("jwt.expire_minutes", 7*24*60)
	v.SetDefault("jwt.cookie_name", "agrimatch_token")
	v.SetDefault("log.level", "info")
	v.SetDefault("ledger.redeem_cny_rate", "1")
	v.SetDefault("ledger.recharge_max", 10000)
	v.SetDefault("ledger.recharge_day_max", 50000)
	v.SetDefault("ledger.redeem_max", 5000)
	v.SetDefault("ledger.redeem_day_max", 10000)
	v.SetDefault("ledger.lock_ttl_seconds", 30)
	v.SetDefault("ledger.lock_retry_ms", 100)
	v.SetDefault("ledger.lock_max_retries", 30)
	v.SetDefault("ledger.qr_code_base_url", "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=")
	v.SetDefault("giftcard.timeout_seconds", 5)
	v.SetDefault("giftcard.max_retries", 2)
	v.SetDefault("telemetry.service_name", "agrimatch-points")
	v.SetDefault("business.recharge_order_timeout_minutes", 30)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.outbox_interval_ms", 500)
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret 不能为空")
	}
	if c.Database.Driver != DriverMySQL && c.Database.Driver != DriverPostgres {
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return errors.New("database.host 不能为空")
	}
	rate, err := c.Ledger.CnyRate()
	if err != nil {
		return fmt.Errorf("ledger.redeem_cny_rate 格式错误: %w", err)
	}
	if rate.IsNegative() {
		return errors.New("ledger.redeem_cny_rate 不能为负数")
	}
	// 金额列为 decimal(20,2)
	if rate.Exponent() < -2 && !rate.Equal(rate.Round(2)) {
		return errors.New("ledger.redeem_cny_rate 最多两位小数")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers 不能为空")
	}
	return nil
}

// CnyRate 解析兑换汇率
func (l LedgerConfig) CnyRate() (decimal.Decimal, error) {
	if l.RedeemCnyRate == "" {
		return decimal.NewFromInt(1), nil
	}
	return decimal.NewFromString(l.RedeemCnyRate)
}
