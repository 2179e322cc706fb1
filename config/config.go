package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads environment variables from .env when GO_ENV is unset or "development"
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

// Settings is the process configuration, built once at startup and passed down.
// Nothing below the app wiring reads the environment directly.
type Settings struct {
	GoEnv   string
	AppName string
	Port    int

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret string
	JWTIssuer string

	// Redis (optional; reconciliation degrades to constraint-only protection)
	RedisURL string

	// Paystack
	PaystackSecretKey string
	PaystackBaseURL   string

	// Transactional email (optional; absence disables confirmation emails)
	ResendAPIKey string
	EmailFrom    string
}

// Get reads the environment into a Settings struct and validates required keys
func Get() (*Settings, error) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	s := &Settings{
		GoEnv:   os.Getenv("GO_ENV"),
		AppName: getEnvOrDefault("APP_NAME", "LearnHub"),
		Port:    port,

		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER_NAME"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getEnvOrDefault("JWT_ISSUER", "learnhub-api"),

		RedisURL: os.Getenv("REDIS_URL"),

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnvOrDefault("PAYSTACK_BASE_URL", "https://api.paystack.co"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnvOrDefault("EMAIL_FROM", "LearnHub <noreply@learnhub.app>"),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// validate rejects a configuration that cannot settle payments.
// RESEND_API_KEY and REDIS_URL are deliberately not required.
func (s *Settings) validate() error {
	required := map[string]string{
		"DB_USER_NAME":        s.DBUser,
		"DB_NAME":             s.DBName,
		"JWT_SECRET":          s.JWTSecret,
		"PAYSTACK_SECRET_KEY": s.PaystackSecretKey,
	}

	for key, val := range required {
		if val == "" {
			return fmt.Errorf("misconfigured: required environment variable %s is not set", key)
		}
	}

	return nil
}

// IsProduction reports whether the app runs with production settings
func (s *Settings) IsProduction() bool {
	return s.GoEnv == "production"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
