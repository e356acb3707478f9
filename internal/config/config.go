package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"

	defaultDBDriver   = "mysql"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "vibecodingwiki"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	OperatorToken  string                `yaml:"operator_token"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	WorkOS         WorkOSConfig          `yaml:"workos"`
	Autumn         AutumnConfig          `yaml:"autumn"`
	Firecrawl      FirecrawlConfig       `yaml:"firecrawl"`
	AI             AIConfig              `yaml:"ai"`
	R2             R2Config              `yaml:"r2"`
	Mail           MailConfig            `yaml:"mail"`
}

type DatabaseRuntimeConfig struct {
	Driver   string `yaml:"driver"` // "mysql" | "sqlite"
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	Loc      string `yaml:"loc"`
}

type RedisRuntimeConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkOSConfig carries the credentials for the hosted identity provider.
// WebhookSecret authenticates user-sync callbacks.
type WorkOSConfig struct {
	APIKey        string `yaml:"api_key"`
	ClientID      string `yaml:"client_id"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// AutumnConfig carries the billing/entitlement gateway credentials.
type AutumnConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// FirecrawlConfig carries the scraping service credentials.
type FirecrawlConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// AIConfig selects and configures the drafting model provider.
type AIConfig struct {
	Provider     string `yaml:"provider"` // "openai" | "anthropic"
	OpenAIKey    string `yaml:"openai_key"`
	AnthropicKey string `yaml:"anthropic_key"`
	Model        string `yaml:"model"`
}

// R2Config carries the S3-compatible object storage credentials.
type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// MailConfig configures outbound email. Resend takes precedence over
// SMTP when both are configured.
type MailConfig struct {
	Enable       bool   `yaml:"enable"`
	From         string `yaml:"from"`
	ReplyTo      string `yaml:"reply_to"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	ResendAPIKey string `yaml:"resend_api_key"`
}

// Load reads and validates the YAML config at configPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Driver != "mysql" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("invalid database.driver %q in %q, expected mysql or sqlite", cfg.Database.Driver, path)
	}
	if cfg.Database.Driver == "mysql" && (cfg.Database.Port < 1 || cfg.Database.Port > 65535) {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid redis.db %d in %q, expected >= 0", cfg.Redis.DB, path)
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = buildMySQLDSN(cfg.Database)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:   defaultDBDriver,
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		AI: AIConfig{
			Provider: "openai",
		},
	}
}

// applyEnvOverrides lets secrets come from the environment so they stay out
// of the config file in deployments.
func applyEnvOverrides(cfg *AppConfig) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"VCW_JWT_SECRET", &cfg.JWTSecret},
		{"VCW_OPERATOR_TOKEN", &cfg.OperatorToken},
		{"VCW_DATABASE_DSN", &cfg.Database.DSN},
		{"VCW_REDIS_PASSWORD", &cfg.Redis.Password},
		{"WORKOS_API_KEY", &cfg.WorkOS.APIKey},
		{"WORKOS_WEBHOOK_SECRET", &cfg.WorkOS.WebhookSecret},
		{"AUTUMN_SECRET_KEY", &cfg.Autumn.APIKey},
		{"FIRECRAWL_API_KEY", &cfg.Firecrawl.APIKey},
		{"OPENAI_API_KEY", &cfg.AI.OpenAIKey},
		{"ANTHROPIC_API_KEY", &cfg.AI.AnthropicKey},
		{"R2_ACCESS_KEY_ID", &cfg.R2.AccessKeyID},
		{"R2_SECRET_ACCESS_KEY", &cfg.R2.SecretAccessKey},
		{"VCW_SMTP_PASSWORD", &cfg.Mail.SMTPPassword},
		{"RESEND_API_KEY", &cfg.Mail.ResendAPIKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func buildMySQLDSN(db DatabaseRuntimeConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=%s",
		db.User, db.Password, db.Host, db.Port, db.Name, db.Charset, db.Loc)
}

// RedisAddr returns the host:port address for the Redis client.
func (c *AppConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// RedisURL returns a redis:// URL for go-redis ParseURL.
func (c *AppConfig) RedisURL() string {
	u := url.URL{
		Scheme: "redis",
		Host:   c.RedisAddr(),
		Path:   fmt.Sprintf("/%d", c.Redis.DB),
	}
	if c.Redis.Username != "" || c.Redis.Password != "" {
		u.User = url.UserPassword(c.Redis.Username, c.Redis.Password)
	}
	return u.String()
}

// IsDev reports whether the server runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env != "production"
}
