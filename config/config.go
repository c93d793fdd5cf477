package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	appOnce   sync.Once
	appConfig *AppConfig
	appErr    error
)

type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Conversion ConversionConfig `yaml:"conversion"`
	Audio      AudioConfig      `yaml:"audio"`
	Document   DocumentConfig   `yaml:"document"`
	Image      ImageConfig      `yaml:"image"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type StorageConfig struct {
	UploadDir     string        `yaml:"uploadDir"`
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type ConversionConfig struct {
	MaxFileSize   int64         `yaml:"maxFileSize"`
	MaxConcurrent int           `yaml:"maxConcurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

type AudioConfig struct {
	FFmpegPath string `yaml:"ffmpegPath"`
	Bitrate    string `yaml:"bitrate"`
	Codec      string `yaml:"codec"`
}

type DocumentConfig struct {
	SofficePath string `yaml:"sofficePath"`
}

type ImageConfig struct {
	Quality int `yaml:"quality"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
	Development bool     `yaml:"development"`
}

// Default 返回默认配置
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:            3000,
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir:     "uploads",
			Retention:     time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Conversion: ConversionConfig{
			MaxFileSize:   100 * 1024 * 1024, // 100MB
			MaxConcurrent: 8,
		},
		Audio: AudioConfig{
			FFmpegPath: "ffmpeg",
			Bitrate:    "192k",
			Codec:      "libmp3lame",
		},
		Image: ImageConfig{
			Quality: 90,
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/app.log"},
		},
	}
}

// GetConfig loads the process configuration once: .env, then the YAML file
// named by CONVERTER_CONFIG (default config.yaml), then environment overrides.
func GetConfig() (*AppConfig, error) {
	appOnce.Do(func() {
		// 获取当前文件的目录
		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		envPath := filepath.Join(rootDir, ".env")

		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
		}

		path := os.Getenv("CONVERTER_CONFIG")
		if path == "" {
			path = "config.yaml"
		}
		appConfig, appErr = Load(path)
	})
	return appConfig, appErr
}

// Load builds a config from defaults, an optional YAML file and the environment.
// A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_DEVELOPMENT %q: %w", v, err)
		}
		cfg.Log.Development = dev
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.Audio.FFmpegPath = v
	}
	if v := os.Getenv("SOFFICE_PATH"); v != "" {
		cfg.Document.SofficePath = v
	}
	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_CONCURRENT %q: %w", v, err)
		}
		cfg.Conversion.MaxConcurrent = n
	}
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_FILE_SIZE %q: %w", v, err)
		}
		cfg.Conversion.MaxFileSize = n
	}
	if v := os.Getenv("CONVERT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CONVERT_TIMEOUT %q: %w", v, err)
		}
		cfg.Conversion.Timeout = d
	}
	return nil
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage upload dir is required")
	}
	if c.Conversion.MaxConcurrent <= 0 {
		return fmt.Errorf("conversion maxConcurrent must be positive, got %d", c.Conversion.MaxConcurrent)
	}
	if c.Conversion.MaxFileSize <= 0 {
		return fmt.Errorf("conversion maxFileSize must be positive, got %d", c.Conversion.MaxFileSize)
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return fmt.Errorf("image quality must be within 1..100, got %d", c.Image.Quality)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
