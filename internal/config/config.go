package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	HomeLocation string
	PollInterval time.Duration
	OpsAddr      string

	LogLevel  string
	LogFormat string

	Scope    ScopeConfig
	Notifier NotifierConfig
	Redis    RedisConfig
	Watch    WatchConfig
}

// ScopeConfig addresses the upstream cinema API.
type ScopeConfig struct {
	BaseURL         string
	NowShowingPath  string
	UpcomingPath    string
	ShowtimesPath   string
	UserKey         string
	TokenURL        string
	ClientID        string
	ClientSecret    string
	HTTPTimeout     time.Duration
	RatePerSec      float64
	BreakerFailures uint32
}

type NotifierConfig struct {
	Kind           string // smtp, ses or log
	SeatPlanDomain string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SESRegion          string
	SESAccessKeyID     string
	SESSecretAccessKey string
	SESFrom            string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// WatchConfig is a fixed watch list used when no database is configured.
type WatchConfig struct {
	Email       string
	MovieIDs    []string
	MovieNames  []string
	Dates       []string
	Experiences []string
	Location    string
}

// FromEnv loads an optional dotenv file (ENV_FILE, default .env) and then
// reads the process environment.
func FromEnv() (Config, error) {
	if err := godotenv.Load(getenv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		HomeLocation: getenv("HOME_LOCATION", "HCM"),
		OpsAddr:      getenv("OPS_ADDR", ":9090"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
		Scope: ScopeConfig{
			BaseURL:        strings.TrimRight(strings.TrimSpace(os.Getenv("SCOPE_BASE_URL")), "/"),
			NowShowingPath: strings.TrimLeft(os.Getenv("SCOPE_NOW_SHOWING_PATH"), "/"),
			UpcomingPath:   strings.TrimLeft(os.Getenv("SCOPE_UPCOMING_PATH"), "/"),
			ShowtimesPath:  strings.TrimLeft(os.Getenv("SCOPE_SHOWTIMES_PATH"), "/"),
			UserKey:        os.Getenv("SCOPE_USER_KEY"),
			TokenURL:       os.Getenv("SCOPE_TOKEN_URL"),
			ClientID:       os.Getenv("SCOPE_CLIENT_ID"),
			ClientSecret:   os.Getenv("SCOPE_CLIENT_SECRET"),
		},
		Notifier: NotifierConfig{
			Kind:               strings.ToLower(getenv("NOTIFIER", "smtp")),
			SeatPlanDomain:     getenv("SEAT_PLAN_DOMAIN", "www.scopecinemas.com"),
			SMTPHost:           getenv("SMTP_HOST", "smtp.gmail.com"),
			SMTPUsername:       os.Getenv("SMTP_USERNAME"),
			SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
			SMTPFrom:           os.Getenv("SMTP_FROM"),
			SESRegion:          getenv("SES_REGION", "us-east-1"),
			SESAccessKeyID:     os.Getenv("SES_ACCESS_KEY_ID"),
			SESSecretAccessKey: os.Getenv("SES_SECRET_ACCESS_KEY"),
			SESFrom:            os.Getenv("SES_FROM"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Watch: WatchConfig{
			Email:       os.Getenv("WATCH_EMAIL"),
			MovieIDs:    splitCSV(os.Getenv("WATCH_MOVIE_IDS")),
			MovieNames:  splitCSV(os.Getenv("WATCH_MOVIE_NAMES")),
			Dates:       splitCSV(os.Getenv("WATCH_DATES")),
			Experiences: splitCSV(os.Getenv("WATCH_EXPERIENCES")),
			Location:    os.Getenv("WATCH_LOCATION"),
		},
	}
	if cfg.Notifier.SMTPFrom == "" {
		cfg.Notifier.SMTPFrom = cfg.Notifier.SMTPUsername
	}

	var err error
	if cfg.PollInterval, err = parseDuration("POLL_INTERVAL", "15m"); err != nil {
		return Config{}, err
	}
	if cfg.Scope.HTTPTimeout, err = parseDuration("SCOPE_HTTP_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.Redis.LockTTL, err = parseDuration("LOCK_TTL", "10m"); err != nil {
		return Config{}, err
	}

	if cfg.Scope.RatePerSec, err = strconv.ParseFloat(getenv("SCOPE_RATE_PER_SEC", "5"), 64); err != nil || cfg.Scope.RatePerSec <= 0 {
		return Config{}, fmt.Errorf("invalid SCOPE_RATE_PER_SEC")
	}
	failures, err := strconv.ParseUint(getenv("SCOPE_BREAKER_FAILURES", "5"), 10, 32)
	if err != nil || failures < 1 {
		return Config{}, fmt.Errorf("invalid SCOPE_BREAKER_FAILURES")
	}
	cfg.Scope.BreakerFailures = uint32(failures)

	if cfg.Notifier.SMTPPort, err = strconv.Atoi(getenv("SMTP_PORT", "587")); err != nil {
		return Config{}, fmt.Errorf("invalid SMTP_PORT")
	}
	if cfg.Redis.DB, err = strconv.Atoi(getenv("REDIS_DB", "0")); err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB")
	}

	switch cfg.Notifier.Kind {
	case "smtp", "ses", "log":
	default:
		return Config{}, fmt.Errorf("invalid NOTIFIER %q (want smtp, ses or log)", cfg.Notifier.Kind)
	}

	return cfg, nil
}

// ValidateScope reports missing upstream settings. Commands that never talk
// to the cinema API skip it.
func (c Config) ValidateScope() error {
	var missing []string
	for k, v := range map[string]string{
		"SCOPE_BASE_URL":         c.Scope.BaseURL,
		"SCOPE_NOW_SHOWING_PATH": c.Scope.NowShowingPath,
		"SCOPE_UPCOMING_PATH":    c.Scope.UpcomingPath,
		"SCOPE_SHOWTIMES_PATH":   c.Scope.ShowtimesPath,
		"SCOPE_TOKEN_URL":        c.Scope.TokenURL,
		"SCOPE_CLIENT_ID":        c.Scope.ClientID,
	} {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenv(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
