package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort       string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	MaxUploadBytes int64
	// OriginPatterns are extra host patterns allowed to open conversation
	// sockets. Same-host origins are always allowed.
	OriginPatterns []string
	Speech         SpeechConfig

	// EnvFileLoaded reports whether a .env file was found next to the binary.
	EnvFileLoaded bool
}

// SpeechConfig carries everything the transcription gateway needs. The
// service-account fields may be empty; the gateway then fails per request.
type SpeechConfig struct {
	CredentialsFile string
	ClientEmail     string
	PrivateKeyID    string
	PrivateKey      string
	TokenURL        string
	Endpoint        string
	LanguageCode    string
	Encoding        string
	SampleRateHertz int64
	Model           string
	Timeout         time.Duration
}

var defaults = map[string]any{
	"HTTP_PORT":              "8080",
	"LOG_LEVEL":              "info",
	"LOG_FORMAT":             "json",
	"DATABASE_URL":           "voxform.db",
	"MAX_UPLOAD_BYTES":       25 << 20,
	"SPEECH_TOKEN_URL":       "https://oauth2.googleapis.com/token",
	"SPEECH_ENDPOINT":        "https://speech.googleapis.com/",
	"SPEECH_LANGUAGE":        "es-ES",
	"SPEECH_ENCODING":        "WEBM_OPUS",
	"SPEECH_SAMPLE_RATE":     48000,
	"SPEECH_MODEL":           "latest_long",
	"SPEECH_TIMEOUT_SECONDS": 60,
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		HTTPPort:       v.GetString("HTTP_PORT"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:      strings.ToLower(v.GetString("LOG_FORMAT")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		OriginPatterns: splitList(v.GetString("WS_ORIGIN_PATTERNS")),
		EnvFileLoaded:  loaded,
		Speech: SpeechConfig{
			CredentialsFile: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
			ClientEmail:     v.GetString("GOOGLE_CLIENT_EMAIL"),
			PrivateKeyID:    v.GetString("GOOGLE_PRIVATE_KEY_ID"),
			PrivateKey:      strings.ReplaceAll(v.GetString("GOOGLE_PRIVATE_KEY"), `\n`, "\n"),
			TokenURL:        v.GetString("SPEECH_TOKEN_URL"),
			Endpoint:        v.GetString("SPEECH_ENDPOINT"),
			LanguageCode:    v.GetString("SPEECH_LANGUAGE"),
			Encoding:        v.GetString("SPEECH_ENCODING"),
			SampleRateHertz: v.GetInt64("SPEECH_SAMPLE_RATE"),
			Model:           v.GetString("SPEECH_MODEL"),
			Timeout:         time.Duration(v.GetInt("SPEECH_TIMEOUT_SECONDS")) * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList parses a comma-separated setting, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of json, console", c.LogFormat))
	}
	if c.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT must not be empty"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL must not be empty"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.Speech.SampleRateHertz <= 0 {
		errs = append(errs, fmt.Errorf("SPEECH_SAMPLE_RATE must be positive, got %d", c.Speech.SampleRateHertz))
	}
	if c.Speech.Timeout <= 0 {
		errs = append(errs, errors.New("SPEECH_TIMEOUT_SECONDS must be positive"))
	}
	if c.Speech.TokenURL == "" || c.Speech.Endpoint == "" {
		errs = append(errs, errors.New("SPEECH_TOKEN_URL and SPEECH_ENDPOINT must not be empty"))
	}

	return errors.Join(errs...)
}

// UsesPostgres reports whether DatabaseURL names a PostgreSQL server rather
// than a SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}
