package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Email      EmailConfig      `mapstructure:"email"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Guard      GuardConfig      `mapstructure:"guard"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`           // debug, release, test
	WebhookSecret string `mapstructure:"webhook_secret"` // shared secret for payment provider callbacks
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// StatementTimeout bounds every query so a stuck statement cannot hold
	// wallet row locks indefinitely. Zero leaves the server default.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	// OpTimeout applies to both reads and writes. Zero keeps the client default.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type ClickHouseConfig struct {
	DSN             string        `mapstructure:"dsn"` // clickhouse://default:@localhost:9000/insights?dial_timeout=5s
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	CommandTopic string        `mapstructure:"command_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"` // empty disables the channel
}

type EmailConfig struct {
	APIURL  string        `mapstructure:"api_url"` // empty disables the channel
	APIKey  string        `mapstructure:"api_key"`
	Sender  string        `mapstructure:"sender"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// WalletConfig tunes the ledger service.
type WalletConfig struct {
	DepositExpiry time.Duration `mapstructure:"deposit_expiry"`
}

// GuardConfig tunes the budget guard loop. Money values are decimal strings.
type GuardConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	LowBalanceThreshold string        `mapstructure:"low_balance_threshold"`
	SafetyMargin        string        `mapstructure:"safety_margin"`
	Concurrency         int           `mapstructure:"concurrency"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`

	LowBalanceTemplateID    int64 `mapstructure:"low_balance_template_id"`
	SpendExceededTemplateID int64 `mapstructure:"spend_exceeded_template_id"`
}

type NotifyConfig struct {
	Timezone    string        `mapstructure:"timezone"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	ClaimTTL    time.Duration `mapstructure:"claim_ttl"`
	Backend     string        `mapstructure:"backend"` // redis, memory
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: ADW_.
// Nested keys use underscore: ADW_DATABASE_HOST, ADW_GUARD_INTERVAL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.webhook_secret", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "adwallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.statement_timeout", "15s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.op_timeout", "500ms")
	v.SetDefault("clickhouse.dsn", "clickhouse://default:@localhost:9000/insights?dial_timeout=5s")
	v.SetDefault("clickhouse.max_open_conns", 5)
	v.SetDefault("clickhouse.max_idle_conns", 2)
	v.SetDefault("clickhouse.conn_max_lifetime", "30m")
	v.SetDefault("clickhouse.ping_timeout", "3s")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.command_topic", "adplatform.campaign-commands")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("email.api_url", "")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.sender", "no-reply@adwallet.local")
	v.SetDefault("email.timeout", "10s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "adwallet")
	v.SetDefault("wallet.deposit_expiry", "30m")
	v.SetDefault("guard.interval", "15m")
	v.SetDefault("guard.low_balance_threshold", "100")
	v.SetDefault("guard.safety_margin", "100")
	v.SetDefault("guard.concurrency", 4)
	v.SetDefault("guard.call_timeout", "10s")
	v.SetDefault("guard.low_balance_template_id", 1)
	v.SetDefault("guard.spend_exceeded_template_id", 2)
	v.SetDefault("notify.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("notify.send_timeout", "10s")
	v.SetDefault("notify.claim_ttl", "2m")
	v.SetDefault("notify.backend", "redis")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// ADW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("ADW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
