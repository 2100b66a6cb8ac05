package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	BlobBasePath string

	// HMAC secret for HS256 bearer tokens
	AuthSecret string

	CORSOrigins []string

	LogLevel  string
	LogFormat string // text|json

	RequestTimeout time.Duration
	MaxUploadMB    int64
}

// Load reads an optional .env file (or the files named) into the process
// environment without overriding variables already set, then calls FromEnv.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, errors.Wrapf(err, "config: stat %s", f)
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, errors.Wrapf(err, "config: load %s", f)
		}
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	timeout, err := envDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := envInt("MAX_UPLOAD_MB", 25)
	if err != nil {
		return Config{}, err
	}
	c := Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		PublicURL:      strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/"),
		DBDriver:       envOr("DB_DRIVER", "sqlite"),
		DBDSN:          envOr("DB_DSN", ""),
		BlobBasePath:   envOr("BLOB_BASE_PATH", "./data"),
		AuthSecret:     envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		CORSOrigins:    csvOr("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "text"),
		RequestTimeout: timeout,
		MaxUploadMB:    maxUpload,
	}
	if c.MaxUploadMB <= 0 {
		return Config{}, errors.Errorf("config: MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return c, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "config: %s", k)
	}
	return n, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrapf(err, "config: %s", k)
	}
	return d, nil
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
