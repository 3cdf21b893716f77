// Package config loads the server configuration from YAML with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	SecretKey                string `yaml:"secretKey"`
	AccessTokenExpireMinutes int    `yaml:"accessTokenExpireMinutes"`
	JWTIssuer                string `yaml:"jwtIssuer"`
	JWTAudience              string `yaml:"jwtAudience"`
	JWTLeeway                string `yaml:"jwtLeeway"`

	MediaRoot      string `yaml:"mediaRoot"`
	DocPath        string `yaml:"docPath"`
	ImgPath        string `yaml:"imgPath"`
	AudioPath      string `yaml:"audioPath"`
	ChunkSize      int    `yaml:"chunkSize"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	LoginRateLimitPerMinute     int `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute  int `yaml:"registerRateLimitPerMinute"`
	SynthesisRateLimitPerMinute int `yaml:"synthesisRateLimitPerMinute"`

	QueueStream  string `yaml:"queueStream"`
	QueueGroup   string `yaml:"queueGroup"`
	QueueWorkers int    `yaml:"queueWorkers"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	SpeechAPIURL          string `yaml:"speechApiURL"`
	SpeechAccessKeyID     string `yaml:"speechAccessKeyID"`
	SpeechSecretAccessKey string `yaml:"speechSecretAccessKey"`
	SpeechRegion          string `yaml:"speechRegion"`

	LocalTTSCommand   string   `yaml:"localTTSCommand"`
	LocalTTSArgs      []string `yaml:"localTTSArgs"`
	LocalTTSVoiceFlag string   `yaml:"localTTSVoiceFlag"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.AccessTokenExpireMinutes = n
		}
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("MEDIA_ASSETS"); v != "" {
		cfg.MediaRoot = v
	}
	if v := os.Getenv("DOC_PATH"); v != "" {
		cfg.DocPath = v
	}
	if v := os.Getenv("IMG_PATH"); v != "" {
		cfg.ImgPath = v
	}
	if v := os.Getenv("AUDIO_PATH"); v != "" {
		cfg.AudioPath = v
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("SPEECH_API_URL"); v != "" {
		cfg.SpeechAPIURL = v
	}
	if v := os.Getenv("SPEECH_ACCESS_KEY_ID"); v != "" {
		cfg.SpeechAccessKeyID = v
	}
	if v := os.Getenv("SPEECH_SECRET_ACCESS_KEY"); v != "" {
		cfg.SpeechSecretAccessKey = v
	}
	if v := os.Getenv("SPEECH_REGION"); v != "" {
		cfg.SpeechRegion = v
	}
	if v := os.Getenv("LOCAL_TTS_COMMAND"); v != "" {
		cfg.LocalTTSCommand = v
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return errors.New("config: secretKey is required (set in config.yaml or SECRET_KEY)")
	}
	if strings.TrimSpace(cfg.MediaRoot) == "" {
		return errors.New("config: mediaRoot is required (set in config.yaml or MEDIA_ASSETS)")
	}
	if cfg.AccessTokenExpireMinutes < 0 {
		return errors.New("config: accessTokenExpireMinutes must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 || cfg.SynthesisRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.QueueWorkers < 0 {
		return errors.New("config: queueWorkers must be >= 0")
	}
	return nil
}

// SessionTTL converts the configured token lifetime, defaulting to 30
// minutes.
func (c FileConfig) SessionTTL() time.Duration {
	if c.AccessTokenExpireMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// ParseJWTLeeway parses the optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}
