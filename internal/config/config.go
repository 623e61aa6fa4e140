package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig      `mapstructure:"telegram"`
	Redis    RedisConfig         `mapstructure:"redis"`
	QuranAPI QuranAPIConfig      `mapstructure:"quran_api"`
	Analysis AnalysisConfig      `mapstructure:"analysis"`
	Capture  CaptureConfig       `mapstructure:"capture"`
	Playback PlaybackConfig      `mapstructure:"playback"`
	Editions domain.EditionTable `mapstructure:"editions"`
	App      AppConfig           `mapstructure:"app"`
	Log      LogConfig           `mapstructure:"log"`
	Observe  ObserveConfig       `mapstructure:"observe"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// RedisConfig configures the content cache. An empty URI disables caching.
type RedisConfig struct {
	URI string        `mapstructure:"uri"`
	TTL time.Duration `mapstructure:"ttl"`
}

type QuranAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

const (
	AnalysisProviderGemini = "gemini"
	AnalysisProviderHTTP   = "http"
)

type AnalysisConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CaptureConfig configures the local microphone used by the terminal surface.
type CaptureConfig struct {
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`
	InputFormat  string        `mapstructure:"input_format"`
	Device       string        `mapstructure:"device"`
	SampleRate   int           `mapstructure:"sample_rate"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
	StartupGrace time.Duration `mapstructure:"startup_grace"`
}

type PlaybackConfig struct {
	FFplayPath string `mapstructure:"ffplay_path"`
}

// AppConfig holds surface-independent settings. An empty LocalesDir uses
// the bundled locale files. Sessions unused for SessionTTL are ended; zero
// keeps them for the process lifetime.
type AppConfig struct {
	LocalesDir      string        `mapstructure:"locales_dir"`
	DefaultLanguage string        `mapstructure:"default_language"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObserveConfig configures the metrics and health endpoint. An empty
// address disables it.
type ObserveConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from a YAML file with environment variable overrides.
// A missing file is tolerated unless it was requested explicitly.
func Load(filename string, explicit bool) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("analysis.api_key", "ANALYSIS_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	// Read config file
	if _, err := os.Stat(filename); err == nil {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Editions.Translations) == 0 && len(cfg.Editions.Reciters) == 0 {
		defaults := domain.DefaultEditions()
		cfg.Editions.Translations = defaults.Translations
		cfg.Editions.Reciters = defaults.Reciters
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := domain.DefaultEditions()

	v.SetDefault("telegram.token", "")
	v.SetDefault("redis.uri", "")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("quran_api.base_url", "https://api.alquran.cloud/v1")
	v.SetDefault("quran_api.timeout", 30*time.Second)
	v.SetDefault("analysis.provider", AnalysisProviderGemini)
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.model", "gemini-2.5-flash")
	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.timeout", 60*time.Second)
	v.SetDefault("capture.ffmpeg_path", "ffmpeg")
	v.SetDefault("capture.input_format", "pulse")
	v.SetDefault("capture.device", "default")
	v.SetDefault("capture.sample_rate", 16000)
	v.SetDefault("capture.stop_timeout", 3*time.Second)
	v.SetDefault("capture.startup_grace", 300*time.Millisecond)
	v.SetDefault("playback.ffplay_path", "ffplay")
	v.SetDefault("editions.text", defaults.Text)
	v.SetDefault("editions.transliteration", defaults.Transliteration)
	v.SetDefault("app.locales_dir", "")
	v.SetDefault("app.default_language", "en")
	v.SetDefault("app.session_ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("observe.addr", "")
}

// validate checks fields every surface needs
func (c *Config) validate() error {
	if c.QuranAPI.BaseURL == "" {
		return fmt.Errorf("quran API base URL is required")
	}
	if err := c.Editions.Validate(); err != nil {
		return fmt.Errorf("editions: %w", err)
	}
	if _, ok := domain.ParseLanguage(c.App.DefaultLanguage); !ok {
		return fmt.Errorf("unsupported default language %q", c.App.DefaultLanguage)
	}
	switch c.Analysis.Provider {
	case AnalysisProviderGemini:
		if c.Analysis.Model == "" {
			return fmt.Errorf("analysis model is required")
		}
	case AnalysisProviderHTTP:
		if c.Analysis.BaseURL == "" {
			return fmt.Errorf("analysis base URL is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown analysis provider %q", c.Analysis.Provider)
	}
	if c.Analysis.APIKey == "" {
		return fmt.Errorf("analysis API key is required")
	}
	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("analysis timeout must be positive")
	}
	if c.App.SessionTTL < 0 {
		return fmt.Errorf("session TTL must not be negative")
	}
	return nil
}

// ValidateBot checks fields required by the Telegram surface
func (c *Config) ValidateBot() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	return nil
}

// ValidateCLI checks fields required by the terminal surface
func (c *Config) ValidateCLI() error {
	if c.Capture.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path is required")
	}
	if c.Playback.FFplayPath == "" {
		return fmt.Errorf("ffplay path is required")
	}
	return nil
}

// DefaultLanguage returns the configured fallback language
func (c *Config) DefaultLanguage() domain.Language {
	lang, _ := domain.ParseLanguage(c.App.DefaultLanguage)
	return lang
}
