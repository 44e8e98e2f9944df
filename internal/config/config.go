package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=gestion_locative port=5432 sslmode=disable"

type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
}

// Enabled is true once endpoint, credentials and bucket are all set.
func (o OSSConfig) Enabled() bool {
	return o.Endpoint != "" && o.AccessKeyID != "" && o.AccessKeySecret != "" && o.Bucket != ""
}

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	LogLevel    string

	// local folder for generated receipts, used when OSS is not configured
	DocumentDir string
	BackupDir   string
	OSS         OSSConfig

	ReceiptCron       string // empty disables the monthly job
	ReceiptOnlyPaid   bool
	DefaultBillingDay int
}

// Load reads .env when present, then the environment. Fatal on a missing
// or weak JWT secret.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] .env illisible: %v", err)
	}

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DocumentDir: getEnv("DOCUMENT_DIR", "./documents"),
		BackupDir:   getEnv("BACKUP_DIR", "./backups"),
		OSS: OSSConfig{
			Endpoint:        getEnv("ALI_OSS_ENDPOINT", ""),
			AccessKeyID:     getEnv("ALI_OSS_ACCESS_KEY_ID", ""),
			AccessKeySecret: getEnv("ALI_OSS_ACCESS_KEY_SECRET", ""),
			Bucket:          getEnv("ALI_OSS_BUCKET", ""),
			Prefix:          getEnv("ALI_OSS_PREFIX", "quittances"),
		},
		ReceiptCron:       getEnv("RECEIPT_CRON", ""),
		ReceiptOnlyPaid:   getEnvBool("RECEIPT_ONLY_PAID", true),
		DefaultBillingDay: getEnvInt("DEFAULT_BILLING_DAY", 5),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET n'est pas défini.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET doit contenir au moins 32 caractères.")
	}
	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN par défaut utilisé, à définir en production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS par défaut utilisé, à définir en production.")
	}
	if cfg.DefaultBillingDay < 1 || cfg.DefaultBillingDay > 31 {
		log.Printf("[WARN] DEFAULT_BILLING_DAY=%d hors limites, 5 utilisé.", cfg.DefaultBillingDay)
		cfg.DefaultBillingDay = 5
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[WARN] %s=%q invalide, %v utilisé.", key, v, def)
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] %s=%q invalide, %d utilisé.", key, v, def)
		return def
	}
	return n
}
