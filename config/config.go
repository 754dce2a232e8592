package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment variable.
	EnvPrefix = "MDCONVERT"

	// DefaultMaxFileBytes is the default maximum accepted file size (100 MiB).
	DefaultMaxFileBytes int64 = 100 << 20
)

// Config holds runtime configuration.
type Config struct {
	MaxFileSizeBytes int64  `mapstructure:"max_file_bytes"`
	OutputDir        string `mapstructure:"output_dir"`
	TempDir          string `mapstructure:"temp_dir"`

	Office OfficeConfig `mapstructure:"office"`
	OCR    OCRConfig    `mapstructure:"ocr"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Log    LogConfig    `mapstructure:"log"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	S3     S3Config     `mapstructure:"s3"`
}

// OfficeConfig controls the headless office suite used for legacy formats.
type OfficeConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OCRConfig selects the recognition engine and preprocessing.
type OCRConfig struct {
	Engine     string `mapstructure:"engine"`
	Languages  string `mapstructure:"languages"`
	Preprocess bool   `mapstructure:"preprocess"`
	PageDPI    int    `mapstructure:"page_dpi"`
}

// LLMConfig holds the vision/text model settings. An empty APIKey selects
// the placeholder client.
type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig holds the HTTP surface settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// S3Config enables uploading finished markdown to a bucket when Bucket is set.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// MaxFileSizeMB returns the configured limit in whole megabytes.
func (c *Config) MaxFileSizeMB() int64 {
	return c.MaxFileSizeBytes >> 20
}

// Load reads Config from an optional .env file, an optional config file and
// MDCONVERT_* environment variables. Invalid numeric limits fall back to
// defaults.
func Load(configFile string) (*Config, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		// Bad values in the environment degrade to defaults.
		cfg = Default()
	}
	cfg.normalize()
	return cfg, nil
}

// Default returns the built-in configuration without consulting the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.normalize()
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_file_bytes", DefaultMaxFileBytes)
	v.SetDefault("output_dir", "converted")
	v.SetDefault("temp_dir", os.TempDir())

	v.SetDefault("office.binary", "")
	v.SetDefault("office.timeout", "30s")

	v.SetDefault("ocr.engine", "tesseract")
	v.SetDefault("ocr.languages", "eng+jpn")
	v.SetDefault("ocr.preprocess", true)
	v.SetDefault("ocr.page_dpi", 200)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "markdown/")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
}

func (c *Config) normalize() {
	if c.MaxFileSizeBytes <= 0 {
		c.MaxFileSizeBytes = DefaultMaxFileBytes
	}
	if c.Office.Timeout <= 0 {
		c.Office.Timeout = 30 * time.Second
	}
	if c.OCR.PageDPI <= 0 {
		c.OCR.PageDPI = 200
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 500
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
}
