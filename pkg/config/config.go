// Package config loads runtime settings from the environment (and .env),
// optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/perarneng/gmail2s3/pkg/gmail"
	"github.com/perarneng/gmail2s3/pkg/storage"
)

type AppConfig struct {
	Debug        bool          `yaml:"debug" json:"debug"`
	Env          string        `yaml:"env" json:"env"`
	URL          string        `yaml:"url" json:"url"`
	DownloadDir  string        `yaml:"download_dir" json:"download_dir"`
	Token        string        `yaml:"token" json:"-"`
	RequireToken bool          `yaml:"require_token" json:"require_token"`
	JSONLog      bool          `yaml:"json_log" json:"json_log"`
	ForwardDelay time.Duration `yaml:"forward_delay" json:"forward_delay"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
	Region    string `yaml:"region" json:"region"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Bucket    string `yaml:"bucket" json:"bucket"`
}

type GmailConfig struct {
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	GmailToken   string   `yaml:"gmail_token" json:"gmail_token"`
	InLabels     []string `yaml:"in_labels" json:"in_labels"`
	OutLabels    []string `yaml:"out_labels" json:"out_labels"`
}

type SentryConfig struct {
	URL         string `yaml:"url" json:"url"`
	Environment string `yaml:"environment" json:"environment"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type Config struct {
	Gmail2S3 AppConfig    `yaml:"gmail2s3" json:"gmail2s3"`
	S3       S3Config     `yaml:"s3" json:"s3"`
	Gmail    GmailConfig  `yaml:"gmail" json:"gmail"`
	Sentry   SentryConfig `yaml:"sentry" json:"sentry"`
	Server   ServerConfig `yaml:"server" json:"server"`
}

// S3Override is the per-request "s3conf" block; nil fields keep the configured value.
type S3Override struct {
	Bucket *string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix *string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Default builds the configuration from environment variables only.
func Default() *Config {
	return &Config{
		Gmail2S3: AppConfig{
			Debug:        envBool("GMAIL2S3_DEBUG"),
			Env:          getenv("APP_ENV", "development"),
			URL:          getenv("GMAIL2S3_API", "http://localhost:8080"),
			DownloadDir:  getenv("GMAIL2S3_DOWNLOAD_DIR", "/tmp/gmail2s3"),
			Token:        os.Getenv("GMAIL2S3_TOKEN"),
			RequireToken: envBool("GMAIL2S3_REQUIRE_TOKEN"),
			JSONLog:      envBool("GMAIL2S3_JSONLOG"),
			ForwardDelay: envDuration("GMAIL2S3_FORWARD_DELAY", 2*time.Second),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("GMAIL2S3_S3_ENDPOINT"),
			AccessKey: os.Getenv("GMAIL2S3_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("GMAIL2S3_S3_SECRET_KEY"),
			Region:    os.Getenv("GMAIL2S3_S3_REGION"),
			Prefix:    os.Getenv("GMAIL2S3_S3_PREFIX"),
			Bucket:    os.Getenv("GMAIL2S3_S3_BUCKET"),
		},
		Gmail: GmailConfig{
			ClientSecret: getenv("GMAIL2S3_GMAIL_CLIENT_SECRET", getenv("GOOGLE_CREDENTIALS_FILE", "credentials.json")),
			GmailToken:   getenv("GMAIL2S3_GMAIL_TOKEN", getenv("GOOGLE_TOKEN_FILE", "token.json")),
			InLabels:     envList("GMAIL2S3_GMAIL_IN_LABELS"),
			OutLabels:    envList("GMAIL2S3_GMAIL_OUT_LABELS"),
		},
		Sentry: SentryConfig{
			URL:         os.Getenv("GMAIL2S3_SENTRY_URL"),
			Environment: getenv("GMAIL2S3_SENTRY_ENV", "development"),
		},
		Server: ServerConfig{
			Addr: getenv("GMAIL2S3_ADDR", ":8080"),
		},
	}
}

// Load reads .env (if present), the environment, then the YAML file at path.
// An empty path falls back to $GMAIL2S3_CONF_FILE.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("GMAIL2S3_CONF_FILE")
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WithS3Overrides returns the S3 settings with the request's bucket/prefix applied.
func (c *Config) WithS3Overrides(o S3Override) S3Config {
	s3 := c.S3
	if o.Bucket != nil {
		s3.Bucket = *o.Bucket
	}
	if o.Prefix != nil {
		s3.Prefix = *o.Prefix
	}
	return s3
}

func (c *Config) GmailOptions() gmail.Options {
	return gmail.Options{
		ClientSecretFile: c.Gmail.ClientSecret,
		TokenFile:        c.Gmail.GmailToken,
	}
}

func (s S3Config) StorageOptions() storage.Options {
	return storage.Options{
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    s.Bucket,
		Prefix:    s.Prefix,
	}
}

func getenv(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func envList(name string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envDuration(name string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(name))
	if err != nil {
		return def
	}
	return d
}
