package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string

	LogLevel  string
	LogFormat string // json veya console

	ConversionCacheTTL time.Duration
	CachePurgeSchedule string // cron ifadesi

	Storage StorageConfig
}

// StorageConfig: ürün görselleri ve fiş/fatura dosyaları için S3 uyumlu depolama
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UseSSL          bool
}

// Enabled: bucket tanımlı değilse yükleme endpoint'leri 503 döner
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.Endpoint != ""
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=kasa port=5432 sslmode=disable"

func Load() *Config {
	// .env varsa yükle, yoksa sadece ortam değişkenleri
	if err := godotenv.Load(); err == nil {
		log.Println(".env dosyası yüklendi")
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:        getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSOrigins:        getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		ConversionCacheTTL: getDuration("CONVERSION_CACHE_TTL", 10*time.Minute),
		CachePurgeSchedule: getEnv("CACHE_PURGE_SCHEDULE", "@every 5m"),
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			PublicBaseURL:   getEnv("STORAGE_PUBLIC_BASE_URL", ""),
			UseSSL:          getBool("STORAGE_USE_SSL", true),
		},
	}

	// Production güvenlik kontrolleri
	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET environment değişkeni tanımlanmamış! Production için zorunludur.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET en az 32 karakter olmalıdır! Güvenlik riski.")
	}
	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN varsayılan değer kullanılıyor, production için mutlaka kendi Postgres bağlantı bilgisini tanımla.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS varsayılan değer kullanılıyor, production için mutlaka kendi domain'ini tanımla.")
	}
	if !cfg.Storage.Enabled() {
		log.Println("[WARN] STORAGE_BUCKET/STORAGE_ENDPOINT tanımlı değil, dosya yükleme kapalı.")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[WARN] %s geçersiz (%q), varsayılan %s kullanılıyor", key, v, def)
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
