// Package config loads runtime settings from defaults, an optional YAML file
// and the environment, and validates them before the server starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	Audio   AudioConfig   `mapstructure:"audio"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" validate:"required"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type ServerConfig struct {
	BindAddr        string        `mapstructure:"bind_addr" validate:"required"`
	Port            string        `mapstructure:"port" validate:"omitempty,numeric"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	PublicBaseURL   string        `mapstructure:"public_base_url" validate:"omitempty,url"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type SpeechConfig struct {
	Voice  string `mapstructure:"voice" validate:"oneof=alloy echo fable onyx nova shimmer"`
	Format string `mapstructure:"format" validate:"oneof=mp3 opus aac flac wav pcm"`
}

type AudioConfig struct {
	Backend    string        `mapstructure:"backend" validate:"oneof=disk nats"`
	Dir        string        `mapstructure:"dir" validate:"required_if=Backend disk"`
	TTL        time.Duration `mapstructure:"ttl" validate:"min=1s"`
	NATSURL    string        `mapstructure:"nats_url" validate:"required_if=Backend nats"`
	NATSBucket string        `mapstructure:"nats_bucket" validate:"required_if=Backend nats"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"openai.api_key":          "OPENAI_API_KEY",
	"openai.base_url":         "OPENAI_BASE_URL",
	"server.bind_addr":        "APP_BIND_ADDR",
	"server.port":             "PORT",
	"server.shutdown_timeout": "APP_SHUTDOWN_TIMEOUT",
	"server.allowed_origins":  "APP_ALLOWED_ORIGINS",
	"server.public_base_url":  "APP_PUBLIC_BASE_URL",
	"metrics.namespace":       "APP_METRICS_NAMESPACE",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"speech.voice":            "SPEECH_VOICE",
	"speech.format":           "SPEECH_FORMAT",
	"audio.backend":           "AUDIO_BACKEND",
	"audio.dir":               "AUDIO_DIR",
	"audio.ttl":               "AUDIO_TTL",
	"audio.nats_url":          "NATS_URL",
	"audio.nats_bucket":       "NATS_AUDIO_BUCKET",
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

// NewConfigLoader reads configFile when given, otherwise looks for
// kanavoz.yaml in the working directory and in $HOME/.config/kanavoz.
func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("kanavoz")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/kanavoz")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.bind_addr", ":5000")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("metrics.namespace", "kanavoz")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("speech.voice", "alloy")
	v.SetDefault("speech.format", "mp3")
	v.SetDefault("audio.backend", "disk")
	v.SetDefault("audio.dir", "audio")
	v.SetDefault("audio.ttl", "300s")
	v.SetDefault("audio.nats_bucket", "kanavoz-audio")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}
	normalize(&cfg)

	if err := loader.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		errorMsgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}

// Load is a shortcut for NewConfigLoader(configFile).Load().
func Load(configFile string) (*Config, error) {
	loader, err := NewConfigLoader(configFile)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}

// normalize applies the derived settings: PORT only applies when
// APP_BIND_ADDR is not set.
func normalize(cfg *Config) {
	cfg.OpenAI.APIKey = strings.TrimSpace(cfg.OpenAI.APIKey)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Speech.Voice = strings.ToLower(strings.TrimSpace(cfg.Speech.Voice))
	cfg.Speech.Format = strings.ToLower(strings.TrimSpace(cfg.Speech.Format))
	cfg.Audio.Backend = strings.ToLower(strings.TrimSpace(cfg.Audio.Backend))

	if _, ok := os.LookupEnv("APP_BIND_ADDR"); !ok && cfg.Server.Port != "" {
		cfg.Server.BindAddr = ":" + cfg.Server.Port
	}

	origins := cfg.Server.AllowedOrigins[:0]
	for _, o := range cfg.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.Server.AllowedOrigins = origins
}
