package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type AlertConfig struct {
	WebhookURL string
}

// IsConfigured returns true if alert delivery is enabled
func (c AlertConfig) IsConfigured() bool {
	return c.WebhookURL != ""
}

type AppConfig struct {
	DatabaseDriver     string
	DatabaseURL        string
	DatabaseSchema     string
	Port               string
	CORSAllowedOrigins string
	Environment        string

	// Broker policy
	LivenessWindow    time.Duration
	ReaperInterval    time.Duration
	ServerCommand     string
	TrustProxyHeaders bool

	AlertConfig AlertConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	driver := getEnvWithDefault("DB_DRIVER", DriverPostgres)
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, driver)
	}

	defaultSchema := "public"
	if driver == DriverSQLite {
		defaultSchema = "main"
	}

	livenessWindow, err := getEnvSeconds("LIVENESS_WINDOW_SECONDS", 600)
	if err != nil {
		return nil, err
	}
	reaperInterval, err := getEnvSeconds("REAPER_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		DatabaseDriver:     driver,
		DatabaseURL:        databaseURL,
		DatabaseSchema:     getEnvWithDefault("DB_SCHEMA", defaultSchema),
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),

		LivenessWindow:    livenessWindow,
		ReaperInterval:    reaperInterval,
		ServerCommand:     getEnvWithDefault("SERVER_COMMAND", "iperf"),
		TrustProxyHeaders: getEnvWithDefault("TRUST_PROXY_HEADERS", "false") == "true",

		AlertConfig: AlertConfig{
			WebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		},
	}

	if config.AlertConfig.IsConfigured() {
		log.Printf("✅ Error alerts configured")
	} else {
		log.Printf("⚠️ ALERT_WEBHOOK_URL not set - error alerts will only be logged")
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) (time.Duration, error) {
	raw := getEnvWithDefault(key, strconv.Itoa(defaultSeconds))
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of seconds, got %q", key, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}
