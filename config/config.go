package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Mode      string
	Port      string
	DBDsn     string
	JWTKey    string
	SaltRound int

	RedisAddr     string
	RedisPassword string

	// Secret store holding the playback signing key
	SecretsApiURL   string
	SecretsApiToken string

	// Playback credential signing
	PlaybackSecretName    string
	PlaybackKeyPairID     string
	MediaDomain           string
	PlaybackCredentialTTL int // minutes

	// Playback session housekeeping
	SessionIdleTimeout int // minutes
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Mode:      getEnv("APP_MODE", "development"),
		Port:      getEnv("PORT", "3000"),
		DBDsn:     getEnv("DB_DSN", "host=localhost user=lms password=lms dbname=lms port=5432 sslmode=disable"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SecretsApiURL:   getEnv("SECRETS_API_URL", ""),
		SecretsApiToken: getEnv("SECRETS_API_TOKEN", ""),

		PlaybackSecretName:    getEnv("PLAYBACK_SECRET_NAME", ""),
		PlaybackKeyPairID:     getEnv("PLAYBACK_KEY_PAIR_ID", ""),
		MediaDomain:           getEnv("MEDIA_DOMAIN", ""),
		PlaybackCredentialTTL: getEnvInt("PLAYBACK_CREDENTIAL_TTL_MIN", 240),

		SessionIdleTimeout: getEnvInt("SESSION_IDLE_TIMEOUT_MIN", 30),
	}

	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
}

// ValidatePlaybackConfig makes sure the credential signing material is
// configured. A process that cannot sign playback credentials must not come
// up and start issuing malformed ones.
func ValidatePlaybackConfig() {
	missing := []string{}
	if AppConfig.SecretsApiURL == "" {
		missing = append(missing, "SECRETS_API_URL")
	}
	if AppConfig.PlaybackSecretName == "" {
		missing = append(missing, "PLAYBACK_SECRET_NAME")
	}
	if AppConfig.PlaybackKeyPairID == "" {
		missing = append(missing, "PLAYBACK_KEY_PAIR_ID")
	}
	if AppConfig.MediaDomain == "" {
		missing = append(missing, "MEDIA_DOMAIN")
	}
	if len(missing) > 0 {
		log.Fatalf("Missing playback signing configuration: %v", missing)
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}
