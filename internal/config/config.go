package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Sequence backends
const (
	SequenceBackendDB    = "db"
	SequenceBackendRedis = "redis"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// JWT
	JWTSecret          string
	JWTSecretGenerated bool // no JWT_SECRET in the environment
	JWTExpireHours     int

	// Initial admin account, created when no users exist
	AdminUsername string
	AdminPassword string

	// API
	APIPort        int
	RateLimit      int
	RateLimitReset time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Numbering
	SequenceBackend string

	// Principal cache
	PrincipalCacheSize  int
	PrincipalCacheTTL   time.Duration
	PrincipalCacheSweep string

	// Billing
	DefaultTaxRate decimal.Decimal
	LateFeeRate    decimal.Decimal
	DueDays        int
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	jwtGenerated := jwtSecret == ""
	if jwtGenerated {
		jwtSecret = generateSecureSecret(32)
		log.Println("WARNING: JWT_SECRET not set - generated random secret, it will be persisted in the database.")
	}

	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisPassword == "" {
		log.Println("WARNING: REDIS_PASSWORD not set - Redis is not secured!")
	}

	adminPassword := getEnv("ADMIN_PASSWORD", "")
	if adminPassword == "" {
		adminPassword = generateSecureSecret(8)
		log.Printf("WARNING: ADMIN_PASSWORD not set - initial admin password is %s", adminPassword)
	}

	backend := getEnv("SEQUENCE_BACKEND", SequenceBackendDB)
	if backend != SequenceBackendDB && backend != SequenceBackendRedis {
		log.Printf("WARNING: unknown SEQUENCE_BACKEND %q, falling back to %q", backend, SequenceBackendDB)
		backend = SequenceBackendDB
	}

	return &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "vigilnet"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "vigilnet"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,

		// JWT
		JWTSecret:          jwtSecret,
		JWTSecretGenerated: jwtGenerated,
		JWTExpireHours:     getEnvInt("JWT_EXPIRE_HOURS", 24),

		// Initial admin
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: adminPassword,

		// API
		APIPort:        getEnvInt("API_PORT", 8080),
		RateLimit:      getEnvInt("API_RATE_LIMIT", 100),
		RateLimitReset: time.Duration(getEnvInt("API_RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Numbering
		SequenceBackend: backend,

		// Principal cache
		PrincipalCacheSize:  getEnvInt("PRINCIPAL_CACHE_SIZE", 1024),
		PrincipalCacheTTL:   time.Duration(getEnvInt("PRINCIPAL_CACHE_TTL_SECONDS", 300)) * time.Second,
		PrincipalCacheSweep: getEnv("PRINCIPAL_CACHE_SWEEP", "@every 1m"),

		// Billing
		DefaultTaxRate: getEnvDecimal("DEFAULT_TAX_RATE", decimal.Zero),
		LateFeeRate:    getEnvDecimal("LATE_FEE_RATE", decimal.Zero),
		DueDays:        getEnvInt("RECEIPT_DUE_DAYS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
