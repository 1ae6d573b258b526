package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential 未配置生成式图像服务的凭据
var ErrMissingCredential = errors.New("missing api credential for background replacement service")

const (
	ProviderGemini  = "gemini"
	ProviderGrabCut = "grabcut"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Photo      PhotoConfig      `mapstructure:"photo"`
	Session    SessionConfig    `mapstructure:"session"`
	Background BackgroundConfig `mapstructure:"background"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	GrabCut    GrabCutConfig    `mapstructure:"grabcut"`
	Detect     DetectConfig     `mapstructure:"detect"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	// MaxSize 为 0 时不限制上传大小
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// PhotoConfig 输出照片参数，默认值即 3.5cm x 4.5cm @ 300 DPI
type PhotoConfig struct {
	Width             int    `mapstructure:"width"`
	Height            int    `mapstructure:"height"`
	Quality           int    `mapstructure:"quality"`
	Filename          string `mapstructure:"filename"`
	DefaultBackground string `mapstructure:"default_background"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type BackgroundConfig struct {
	Provider string `mapstructure:"provider"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GrabCutConfig struct {
	Iterations    int `mapstructure:"iterations"`
	BorderSize    int `mapstructure:"border_size"`
	MaxConcurrent int `mapstructure:"max_concurrent"`
	QueueTimeout  int `mapstructure:"queue_timeout"`
	MaxDimension  int `mapstructure:"max_dimension"`
}

type DetectConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	CascadeFile string `mapstructure:"cascade_file"`
}

// Load 从 YAML 文件和环境变量加载配置，文件不存在时仅使用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PASSPORTKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// 兼容常见的凭据变量名
	if err := v.BindEnv("gemini.api_key", "PASSPORTKIT_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() (*Config, error) {
	path := os.Getenv("PASSPORTKIT_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate 检查启动必需的配置
func (c *Config) Validate() error {
	switch c.Background.Provider {
	case ProviderGemini:
		if strings.TrimSpace(c.Gemini.APIKey) == "" {
			return ErrMissingCredential
		}
	case ProviderGrabCut:
	default:
		return fmt.Errorf("unknown background provider %q", c.Background.Provider)
	}

	if c.Photo.Width <= 0 || c.Photo.Height <= 0 {
		return fmt.Errorf("invalid photo size %dx%d", c.Photo.Width, c.Photo.Height)
	}
	if c.Photo.Quality < 1 || c.Photo.Quality > 100 {
		return fmt.Errorf("invalid photo quality %d", c.Photo.Quality)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 2)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 0)
	v.SetDefault("upload.allowed_types", []string{"image/png", "image/jpeg", "image/webp"})

	v.SetDefault("photo.width", 413)
	v.SetDefault("photo.height", 531)
	v.SetDefault("photo.quality", 95)
	v.SetDefault("photo.filename", "passport-photo.jpg")
	v.SetDefault("photo.default_background", "#ffffff")

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cleanup_interval", time.Minute)

	v.SetDefault("background.provider", ProviderGemini)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash-image-preview")

	v.SetDefault("grabcut.iterations", 5)
	v.SetDefault("grabcut.border_size", 10)
	v.SetDefault("grabcut.max_concurrent", 2)
	v.SetDefault("grabcut.queue_timeout", 30)
	v.SetDefault("grabcut.max_dimension", 1200)

	v.SetDefault("detect.enabled", true)
	v.SetDefault("detect.cascade_file", "haarcascade_frontalface_default.xml")
}
