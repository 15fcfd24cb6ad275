package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var REQUIRED_ENV = []string{
	"ADDR",
	"REDIS_HOST",
	"REDIS_PORT",
}

// postgres settings are only needed when DATABASE_URL is absent
var POSTGRES_ENV = []string{
	"POSTGRES_HOST",
	"POSTGRES_PORT",
	"POSTGRES_USER",
	"POSTGRES_PASSWORD",
	"POSTGRES_DB",
}

type Config struct {
	Addr        string
	MetricsAddr string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	UploadDir   string
	MapsAPIKey  string
	CORSOrigins []string

	INaturalistURL string
	TaxonName      string

	SessionSecure bool
	LogLevel      string
	AppEnv        string
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Load reads ./.env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	missing := checkenv(REQUIRED_ENV)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		missing = append(missing, checkenv(POSTGRES_ENV)...)
	}

	if len(missing) != 0 {
		return nil, fmt.Errorf("missing %v in env", strings.Join(missing, ", "))
	}

	if databaseURL == "" {
		databaseURL = postgresURL()
	}

	cfg := &Config{
		Addr:           os.Getenv("ADDR"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		DatabaseURL:    databaseURL,
		RedisAddr:      os.Getenv("REDIS_HOST") + ":" + os.Getenv("REDIS_PORT"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		MapsAPIKey:     os.Getenv("MAPS_API_KEY"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		INaturalistURL: strings.TrimRight(getEnv("INATURALIST_URL", "https://api.inaturalist.org/v1"), "/"),
		TaxonName:      getEnv("TAXON_NAME", "Lampyridae"),
		SessionSecure:  getEnv("SESSION_SECURE", "false") == "true",
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AppEnv:         getEnv("APP_ENV", "development"),
	}

	return cfg, nil
}

// String masks secrets so the config can be logged at startup.
func (c *Config) String() string {
	dbURL := c.DatabaseURL
	if u, err := url.Parse(dbURL); err == nil {
		dbURL = u.Redacted()
	}

	return fmt.Sprintf(
		"Config{Addr: %s, DB: %s, Redis: %s, Uploads: %s, Feed: %s (%s), Env: %s}",
		c.Addr, dbURL, c.RedisAddr, c.UploadDir, c.INaturalistURL, c.TaxonName, c.AppEnv,
	)
}

func postgresURL() string {
	u := url.URL{
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Scheme: "postgres",
		Host:   os.Getenv("POSTGRES_HOST") + ":" + os.Getenv("POSTGRES_PORT"),
		Path:   os.Getenv("POSTGRES_DB"),
		RawQuery: url.Values{
			"sslmode":  {getEnv("POSTGRES_SSLMODE", "disable")},
			"TimeZone": {"UTC"},
		}.Encode(),
	}

	return u.String()
}

func checkenv(keys []string) []string {
	var missing []string
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); len(val) == 0 || !ok {
			missing = append(missing, key)
		}
	}

	return missing
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
