// Package config loads application settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DOUBTIQ_JWT_SECRET.
const EnvPrefix = "DOUBTIQ"

// Config mirrors configs/config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Log           LogConfig           `mapstructure:"log"`
	AI            AIConfig            `mapstructure:"ai"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Mail          MailConfig          `mapstructure:"mail"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string  `mapstructure:"port"`
	Mode           string  `mapstructure:"mode"`
	ClientOrigin   string  `mapstructure:"client_origin"`
	MaxUploadBytes int64   `mapstructure:"max_upload_bytes"`
	AuthRateRPS    float64 `mapstructure:"auth_rate_rps"`
	AuthRateBurst  int     `mapstructure:"auth_rate_burst"`
}

// DatabaseConfig selects the gorm dialect. Driver is "mysql" or "sqlite".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// AuthConfig holds the password-reset and bootstrap settings.
type AuthConfig struct {
	OTPTTL      time.Duration `mapstructure:"otp_ttl"`
	AdminEmails []string      `mapstructure:"admin_emails"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AIConfig points at an OpenAI-compatible chat completions API.
type AIConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	TextModel          string        `mapstructure:"text_model"`
	VisionModel        string        `mapstructure:"vision_model"`
	Temperature        float64       `mapstructure:"temperature"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	VisionMaxTokens    int           `mapstructure:"vision_max_tokens"`
	Timeout            time.Duration `mapstructure:"timeout"`
	SystemPrompt       string        `mapstructure:"system_prompt"`
	DefaultPDFPrompt   string        `mapstructure:"default_pdf_prompt"`
	DefaultImagePrompt string        `mapstructure:"default_image_prompt"`
}

type TikaConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// MailConfig selects how password-reset mail leaves the process.
// Transport is "none", "smtp" or "kafka".
type MailConfig struct {
	Transport string        `mapstructure:"transport"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	From      string        `mapstructure:"from"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// Diagnostic reports whether the server runs in debug mode, where OTP codes and
// upstream error detail may be returned to the caller.
func (c *Config) Diagnostic() bool {
	return c.Server.Mode == "debug"
}

// MailConfigured reports whether SMTP credentials are complete.
func (c MailConfig) MailConfigured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.client_origin", "http://localhost:5173")
	v.SetDefault("server.max_upload_bytes", 5<<20)
	v.SetDefault("server.auth_rate_rps", 5)
	v.SetDefault("server.auth_rate_burst", 10)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_hours", 168)
	v.SetDefault("auth.otp_ttl", 10*time.Minute)
	v.SetDefault("auth.admin_emails", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.text_model", "llama-3.1-8b-instant")
	v.SetDefault("ai.vision_model", "llama-3.2-11b-vision-preview")
	v.SetDefault("ai.temperature", 0.5)
	v.SetDefault("ai.max_tokens", 2000)
	v.SetDefault("ai.vision_max_tokens", 1024)
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.system_prompt", "You are an AI doubt solver. Explain answers clearly, simply, and step-by-step.")
	v.SetDefault("ai.default_pdf_prompt", "Please analyze this document and explain its content.")
	v.SetDefault("ai.default_image_prompt", "Please analyze this image and explain what you see.")

	v.SetDefault("tika.server_url", "http://localhost:9998")
	v.SetDefault("tika.timeout", 30*time.Second)

	v.SetDefault("mail.transport", "none")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.timeout", 10*time.Second)

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "doubtiq-mail")
	v.SetDefault("kafka.group_id", "doubtiq-mail-consumer")

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "doubtiq-attachments")

	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.addresses", "")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "doubts")
}

// Load reads configPath (when it exists) and applies DOUBTIQ_* environment
// overrides on top of the defaults. A .env file in the working directory is
// loaded first when present.
func Load(configPath string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Mail.Transport = strings.ToLower(strings.TrimSpace(cfg.Mail.Transport))
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	return &cfg, nil
}
