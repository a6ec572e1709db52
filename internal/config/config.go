package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"backlogwatch/internal/ingest"
	"backlogwatch/internal/overdue"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Config struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	MaxUploadMB int      `yaml:"max_upload_mb"`

	DBPath    string `yaml:"db_path"`
	RedisAddr string `yaml:"redis_addr"`

	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	RefreshTokenTTLHours  int    `yaml:"refresh_token_ttl_hours"`
	AdminUsername         string `yaml:"admin_username"`
	AdminPassword         string `yaml:"admin_password"`
	AdminEmail            string `yaml:"admin_email"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	SMTPFrom     string `yaml:"smtp_from"`
	OutboxDir    string `yaml:"outbox_dir"`

	AlertRecipients   []string                      `yaml:"alert_recipients"`
	AlertMinOverdue   int                           `yaml:"alert_min_overdue"`
	AlertSchedule     string                        `yaml:"alert_schedule"`
	AlertSubject      string                        `yaml:"alert_subject"`
	OverdueThresholds map[string]overdue.Thresholds `yaml:"overdue_thresholds"`
	IngestMappingPath string                        `yaml:"ingest_mapping_path"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`

	Location   *time.Location         `yaml:"-"` // computed from Timezone, not from YAML
	Thresholds overdue.ThresholdTable `yaml:"-"` // defaults merged with OverdueThresholds
	Mapping    ingest.Mapping         `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverrideList(&cfg.CORSOrigins, "CORS_ORIGINS")
	envOverrideInt(&cfg.MaxUploadMB, "MAX_UPLOAD_MB")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverrideAllowEmpty(&cfg.RedisAddr, "REDIS_ADDR")
	envOverride(&cfg.JWTSecret, "JWT_SECRET")
	envOverrideInt(&cfg.AccessTokenTTLMinutes, "ACCESS_TOKEN_TTL_MINUTES")
	envOverrideInt(&cfg.RefreshTokenTTLHours, "REFRESH_TOKEN_TTL_HOURS")
	envOverride(&cfg.AdminUsername, "ADMIN_USERNAME")
	envOverride(&cfg.AdminPassword, "ADMIN_PASSWORD")
	envOverride(&cfg.AdminEmail, "ADMIN_EMAIL")
	envOverride(&cfg.SMTPHost, "SMTP_HOST")
	envOverrideInt(&cfg.SMTPPort, "SMTP_PORT")
	envOverride(&cfg.SMTPUsername, "SMTP_USERNAME")
	envOverride(&cfg.SMTPPassword, "SMTP_PASSWORD")
	envOverride(&cfg.SMTPFrom, "SMTP_FROM")
	envOverride(&cfg.OutboxDir, "OUTBOX_DIR")
	envOverrideList(&cfg.AlertRecipients, "ALERT_RECIPIENTS")
	envOverrideInt(&cfg.AlertMinOverdue, "ALERT_MIN_OVERDUE")
	envOverrideAllowEmpty(&cfg.AlertSchedule, "ALERT_SCHEDULE")
	envOverride(&cfg.AlertSubject, "ALERT_SUBJECT")
	envOverride(&cfg.IngestMappingPath, "INGEST_MAPPING_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./backlogwatch.db"
	}
	if cfg.AccessTokenTTLMinutes == 0 {
		cfg.AccessTokenTTLMinutes = 15
	}
	if cfg.RefreshTokenTTLHours == 0 {
		cfg.RefreshTokenTTLHours = 24
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.OutboxDir == "" {
		cfg.OutboxDir = "./outbox"
	}
	if cfg.AlertMinOverdue == 0 {
		cfg.AlertMinOverdue = 1
	}
	if cfg.AlertSubject == "" {
		cfg.AlertSubject = "Overdue tickets"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if cfg.JWTSecret == "" {
		log.Fatalf("Required config 'jwt_secret' is not set (via config.yaml or env var)")
	}
	if len(cfg.JWTSecret) < 16 {
		log.Fatalf("invalid jwt_secret: must be at least 16 characters")
	}
	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		log.Fatalf("admin_username and admin_password must be set together")
	}
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		log.Fatalf("smtp_from is required when smtp_host is set")
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannelID == "" {
		log.Fatalf("slack_channel_id is required when slack_bot_token is set")
	}
	if len(cfg.AlertRecipients) == 0 {
		log.Printf("WARNING: alert_recipients is empty. Overdue alerts will fail until it is set.")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.AlertMinOverdue < 1 {
		log.Fatalf("invalid alert_min_overdue '%d': must be >= 1", cfg.AlertMinOverdue)
	}
	if cfg.MaxUploadMB < 1 {
		log.Fatalf("invalid max_upload_mb '%d': must be >= 1", cfg.MaxUploadMB)
	}
	if cfg.AccessTokenTTLMinutes < 1 || cfg.RefreshTokenTTLHours < 1 {
		log.Fatalf("invalid token TTLs: access=%dm refresh=%dh", cfg.AccessTokenTTLMinutes, cfg.RefreshTokenTTLHours)
	}
	if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
		log.Fatalf("invalid smtp_port '%d'", cfg.SMTPPort)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}

	table, err := overdue.DefaultThresholds().WithOverrides(cfg.OverdueThresholds)
	if err != nil {
		log.Fatalf("invalid overdue_thresholds: %v", err)
	}
	cfg.Thresholds = table

	mapping, err := ingest.LoadMapping(cfg.IngestMappingPath)
	if err != nil {
		log.Fatalf("invalid ingest_mapping_path '%s': %v", cfg.IngestMappingPath, err)
	}
	cfg.Mapping = mapping

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideList(field *[]string, envKey string) {
	raw := os.Getenv(envKey)
	if raw == "" {
		return
	}
	*field = nil
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*field = append(*field, v)
		}
	}
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHours) * time.Hour
}

func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) LLMConfigured() bool {
	return c.AnthropicAPIKey != ""
}
