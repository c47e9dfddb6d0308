package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv    string
	LogFormat string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	JWTSecret   string
	ServerPort  string
	CORSOrigins string

	AcademyID   string
	AcademyName string
	// BootstrapAdminEmail becomes admin on registration only while the academy
	// has no admins. The address is not verified, so register it right after
	// the first deploy.
	BootstrapAdminEmail string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CartTTLHours  int
	// CartIdleMinutes is how long an unused cart stays cached in process memory.
	CartIdleMinutes int

	MidtransServerKey  string
	MidtransProduction bool
	PaymentCurrency    string
	PaymentReturnURL   string

	StorageDriver        string
	GCSBucket            string
	GCSCredentialsFile   string
	StorageLocalDir      string
	StoragePublicBaseURL string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	storageDriver := getEnv("STORAGE_DRIVER", "local")
	publicBase := "http://localhost:8080/uploads"
	if storageDriver == "gcs" {
		publicBase = ""
	}

	return &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "course_market"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "course_market.db"),

		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		AcademyID:           strings.TrimSpace(getEnv("ACADEMY_ID", "")),
		AcademyName:         getEnv("ACADEMY_NAME", "Academy"),
		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_EMAIL", ""))),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CartTTLHours:  getEnvInt("CART_TTL_HOURS", 24*30),

		CartIdleMinutes: getEnvInt("CART_IDLE_MINUTES", 30),

		MidtransServerKey:  getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransProduction: getEnvBool("MIDTRANS_PRODUCTION", false),
		PaymentCurrency:    getEnv("PAYMENT_CURRENCY", "IDR"),
		PaymentReturnURL:   getEnv("PAYMENT_RETURN_URL", "http://localhost:3000/checkout/return"),

		StorageDriver:        storageDriver,
		GCSBucket:            getEnv("GCS_BUCKET", ""),
		GCSCredentialsFile:   getEnv("GCS_CREDENTIALS_FILE", ""),
		StorageLocalDir:      getEnv("STORAGE_LOCAL_DIR", "./uploads"),
		StoragePublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", publicBase),
	}, nil
}

// ErrAcademyNotConfigured is returned when no tenant id is configured.
var ErrAcademyNotConfigured = errors.New("ACADEMY_ID is not configured")

// VerifyAcademySetup checks that the tenant every query is scoped to is configured.
func VerifyAcademySetup(cfg *Config) error {
	if cfg == nil || cfg.AcademyID == "" {
		return ErrAcademyNotConfigured
	}
	return nil
}

func (cfg *Config) IsProduction() bool {
	return strings.EqualFold(cfg.AppEnv, "production")
}

func (cfg *Config) PaymentsEnabled() bool {
	return cfg.MidtransServerKey != ""
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
