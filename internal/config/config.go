package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	AI         AIConfig         `mapstructure:"ai"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

type BotConfig struct {
	Token         string        `mapstructure:"token"`
	Webhook       WebhookConfig `mapstructure:"webhook"`
	UpdateTimeout int           `mapstructure:"update_timeout"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Port    int    `mapstructure:"port"`
}

// AIConfig points at an OpenAI-compatible endpoint (Groq by default)
type AIConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	TranscribeModel  string        `mapstructure:"transcribe_model"`
	TranscribePrompt string        `mapstructure:"transcribe_prompt"`
	Language         string        `mapstructure:"language"`
	VisionModel      string        `mapstructure:"vision_model"`
	SentimentModel   string        `mapstructure:"sentiment_model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
}

type StorageConfig struct {
	DataDir    string       `mapstructure:"data_dir"`
	MemoryFile string       `mapstructure:"memory_file"`
	LogsFile   string       `mapstructure:"logs_file"`
	DBFile     string       `mapstructure:"db_file"`
	TempDir    string       `mapstructure:"temp_dir"`
	Logs       LogsConfig   `mapstructure:"logs"`
	Memory     MemoryConfig `mapstructure:"memory"`
	Redis      RedisConfig  `mapstructure:"redis"`
}

type LogsConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// MemoryConfig selects the user memory backend: json, redis or memory
type MemoryConfig struct {
	Type string `mapstructure:"type"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

type DashboardConfig struct {
	Directory string `mapstructure:"directory"`
	TopN      int    `mapstructure:"top_n"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MetricsRefresh string        `mapstructure:"metrics_refresh"`
	TempCleanup    string        `mapstructure:"temp_cleanup"`
	TempMaxAge     time.Duration `mapstructure:"temp_max_age"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Enable environment variable substitution
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The bot has historically been deployed with two naming schemes
	v.BindEnv("bot.token", "TELEGRAM_TOKEN", "TOKEN_BOT_TELEGRAM")
	v.BindEnv("ai.api_key", "GROQ_API_KEY", "CLAVE_API_GROQ")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := v.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := v.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	config.Storage.resolvePaths()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.update_timeout", 30)
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.transcribe_model", "whisper-large-v3-turbo")
	v.SetDefault("ai.transcribe_prompt", "Usuario hablando sobre alimentación o emociones")
	v.SetDefault("ai.language", "es")
	v.SetDefault("ai.vision_model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("ai.sentiment_model", "llama-3.1-8b-instant")
	v.SetDefault("ai.timeout", 2*time.Minute)
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.memory_file", "user_memory.json")
	v.SetDefault("storage.logs_file", "user_logs.json")
	v.SetDefault("storage.db_file", "menta.db")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.logs.max_entries", 1000)
	v.SetDefault("storage.memory.type", "json")
	v.SetDefault("dataset.path", "data/dataset.json")
	v.SetDefault("dashboard.directory", "data/dashboard")
	v.SetDefault("dashboard.top_n", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("i18n.default_language", "es")
	v.SetDefault("i18n.languages", []string{"es", "en"})
	v.SetDefault("scheduler.metrics_refresh", "@every 5m")
	v.SetDefault("scheduler.temp_cleanup", "@hourly")
	v.SetDefault("scheduler.temp_max_age", time.Hour)
}

// resolvePaths makes bare file names relative to the data directory
func (s *StorageConfig) resolvePaths() {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.ContainsRune(p, filepath.Separator) {
			return p
		}
		return filepath.Join(s.DataDir, p)
	}
	s.MemoryFile = join(s.MemoryFile)
	s.LogsFile = join(s.LogsFile)
	s.DBFile = join(s.DBFile)
	s.TempDir = join(s.TempDir)
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required (TELEGRAM_TOKEN or TOKEN_BOT_TELEGRAM)")
	}
	if cfg.AI.Enabled && cfg.AI.APIKey == "" {
		return fmt.Errorf("ai api key is required when ai is enabled (GROQ_API_KEY or CLAVE_API_GROQ)")
	}
	switch cfg.Storage.Memory.Type {
	case "json", "redis", "memory":
	default:
		return fmt.Errorf("unsupported memory backend: %s", cfg.Storage.Memory.Type)
	}
	if cfg.Storage.Logs.MaxEntries <= 0 {
		return fmt.Errorf("storage.logs.max_entries must be positive")
	}
	return nil
}
