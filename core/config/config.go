package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	RateLimit  RateLimitConfig
	WorkerPool WorkerPoolConfig
	Media      MediaConfig
	Whatsapp   WhatsappConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	CorsAllowedOrigins []string
	// UICredentials is a "user:password" pair. Empty disables basic auth.
	UICredentials string
}

type PathsConfig struct {
	Storages     string
	Media        string
	LegacySQLite string
}

type DatabaseConfig struct {
	Driver string
	URL    string // postgres DSN or URL
	Path   string // sqlite file

	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyURL       string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type RateLimitConfig struct {
	PerMinute int
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// MediaConfig bounds the history scan used by on-demand media download.
type MediaConfig struct {
	ScanMaxThreads int
	ScanPerThread  int
}

type WhatsappConfig struct {
	LogLevel string
	OS       string
}

// Global provides access to the loaded configuration.
var Global *Config

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("[CONFIG] Loaded variables from .env")
	}

	storages := getEnv("STORAGES_PATH", "storages")

	var corsOrigins []string
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", "*"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	port := getEnv("APP_PORT", "")
	if port == "" {
		port = getEnv("PORT", "3000")
	}

	dbURL := getEnv("DATABASE_URL", "")
	driver := getEnv("DB_DRIVER", "")
	if driver == "" {
		driver = "sqlite"
		if dbURL != "" {
			driver = "postgres"
		}
	}

	valkeyURL := getEnv("REDIS_URL", "")
	valkeyAddr := getEnv("VALKEY_ADDRESS", "")

	cfg := &Config{
		App: AppConfig{
			Version:            "v1.0.0",
			Port:               port,
			Debug:              getEnvBool("APP_DEBUG", false),
			CorsAllowedOrigins: corsOrigins,
			UICredentials:      getEnv("UI_CREDENTIALS", ""),
		},
		Paths: PathsConfig{
			Storages:     storages,
			Media:        getEnv("MEDIA_ROOT", "data"),
			LegacySQLite: getEnv("LEGACY_SQLITE_PATH", "whatsapp_messages.db"),
		},
		Database: DatabaseConfig{
			Driver:          driver,
			URL:             dbURL,
			Path:            getEnv("DB_PATH", filepath.Join(storages, "relay.db")),
			ValkeyEnabled:   valkeyURL != "" || valkeyAddr != "",
			ValkeyAddress:   valkeyAddr,
			ValkeyURL:       valkeyURL,
			ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
			ValkeyDB:        getEnvInt("VALKEY_DB", 0),
			ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "relay:"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("EVENT_WORKERS", 8),
			QueueSize: getEnvInt("EVENT_QUEUE_SIZE", 256),
		},
		Media: MediaConfig{
			ScanMaxThreads: getEnvInt("MEDIA_SCAN_MAX_THREADS", 50),
			ScanPerThread:  getEnvInt("MEDIA_SCAN_PER_THREAD", 100),
		},
		Whatsapp: WhatsappConfig{
			LogLevel: getEnv("WHATSAPP_LOG_LEVEL", "ERROR"),
			OS:       getEnv("APP_OS", "wa-relay"),
		},
	}

	Global = cfg
	return cfg, nil
}

// UICredentialPair splits UICredentials into user and password.
func (c AppConfig) UICredentialPair() (user, password string, ok bool) {
	if c.UICredentials == "" {
		return "", "", false
	}
	user, password, ok = strings.Cut(c.UICredentials, ":")
	if !ok || user == "" {
		return "", "", false
	}
	return user, password, true
}
