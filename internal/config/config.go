package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Host-site configuration the core reads
	SiteURL          string
	SiteName         string
	AdminEmail       string
	DisallowInlineJS bool

	// Third-party endpoints
	CleanTalkAPIURL string
	DoBoardAPIURL   string
	WidgetBundleURL string
	ProjectName     string

	// Remote call behavior
	ProbeTimeout    int // seconds, lightweight probes
	APITimeout      int // seconds, provisioning calls
	HomepageTimeout int // seconds, homepage self-probe
	ScanMaxPages    int

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Auth
	AccessSecret string

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/spotfix_widget"),
		DBName:      getEnv("DB_NAME", "spotfix_widget"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		SiteURL:          getEnv("SITE_URL", ""),
		SiteName:         getEnv("SITE_NAME", ""),
		AdminEmail:       getEnv("ADMIN_EMAIL", ""),
		DisallowInlineJS: getEnvBool("DISALLOW_INLINE_JS", false),

		CleanTalkAPIURL: getEnv("CLEANTALK_API_URL", "https://api.cleantalk.org/"),
		DoBoardAPIURL:   getEnv("DOBOARD_API_URL", "https://api.doboard.com/"),
		WidgetBundleURL: getEnv("WIDGET_BUNDLE_URL", "https://spotfix.doboard.com/doboard-widget-bundle.min.js"),
		ProjectName:     getEnv("PROJECT_NAME", "spotfix-content-review"),

		ProbeTimeout:    getEnvInt("PROBE_TIMEOUT", 5),
		APITimeout:      getEnvInt("API_TIMEOUT", 30),
		HomepageTimeout: getEnvInt("HOMEPAGE_TIMEOUT", 30),
		ScanMaxPages:    getEnvInt("SCAN_MAX_PAGES", 10),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret: getEnv("ACCESS_SECRET", ""),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.SiteURL == "" {
		return nil, fmt.Errorf("SITE_URL is required - set it in .env file")
	}

	// AdminEmail is deliberately not required here: account creation checks
	// it at call time and returns a validation error the admin can act on.

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
