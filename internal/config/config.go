package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultTolerance     = 2.0
	DefaultWorkers       = 4
	DefaultParseTimeout  = 60 * time.Second
	DefaultMaxUploadMB   = 32
	DefaultSnapTolerance = 3.0
	DefaultProfile       = "coretax"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	ConfigFile string

	HTTPAddr    string
	ServiceName string
	LogLevel    string
	MaxUploadMB int

	Tolerance    float64
	Workers      int
	ParseTimeout time.Duration
	PDFPreflight bool
	TableProfile string
	Profiles     map[string]TableProfile

	RedisURL    string
	CacheTTL    time.Duration
	DatabaseURL string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
	MailSubjectFilter        string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		ConfigFile: getEnv("CORETAX_CONFIG", ""),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		ServiceName: getEnv("SERVICE_NAME", "coretax-parser"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", DefaultMaxUploadMB),

		Tolerance:    DefaultTolerance,
		Workers:      DefaultWorkers,
		ParseTimeout: DefaultParseTimeout,
		PDFPreflight: getEnvBool("PDF_PREFLIGHT", false),
		TableProfile: getEnv("TABLE_PROFILE", DefaultProfile),
		Profiles:     DefaultProfiles(),

		RedisURL:    getEnv("REDIS_URL", ""),
		CacheTTL:    getEnvDuration("CACHE_TTL", 24*time.Hour),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
		MailSubjectFilter:        getEnv("MAIL_SUBJECT_FILTER", ""),
	}

	if cfg.ConfigFile != "" {
		file, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, err
		}
		file.apply(&cfg)
	}

	// Env wins over the file.
	cfg.Tolerance = getEnvFloat("CORETAX_TOLERANCE", cfg.Tolerance)
	cfg.Workers = getEnvInt("PARSE_WORKERS", cfg.Workers)
	cfg.ParseTimeout = getEnvDuration("PARSE_TIMEOUT", cfg.ParseTimeout)
	if snap := getEnvFloat("TABLE_SNAP_TOLERANCE", 0); snap > 0 {
		p := cfg.Profile()
		p.SnapTolerance = snap
		cfg.Profiles[cfg.TableProfile] = p
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.ParseTimeout <= 0 {
		return fmt.Errorf("parse timeout must be positive, got %s", c.ParseTimeout)
	}
	if _, ok := c.Profiles[c.TableProfile]; !ok {
		return fmt.Errorf("unknown table profile: %s", c.TableProfile)
	}
	for name, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	return nil
}

// Profile returns the active table-detection profile.
func (c Config) Profile() TableProfile {
	if p, ok := c.Profiles[c.TableProfile]; ok {
		return p
	}
	return DefaultProfiles()[DefaultProfile]
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
