package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port            string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CartTTL       time.Duration

	KafkaBrokers []string
	ServiceName  string

	CORSOrigins []string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string

	Currency              string
	ShippingFee           float64
	FreeShippingThreshold float64
}

// Load reads the optional env files and fills AppEnv. Missing files are
// logged, not fatal: production injects plain environment variables.
func Load(envFiles ...string) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("[CONFIG] [WARN] .env not loaded:", err)
	}
	AppEnv = FromEnv()
}

func FromEnv() Config {
	return Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CartTTL:       getDurationEnv("CART_TTL", 30, 24*time.Hour),

		KafkaBrokers: splitCSV(getEnvOrDefault("KAFKA_BROKERS", "")),
		ServiceName:  getEnvOrDefault("SERVICE_NAME", "storefront-api"),

		CORSOrigins: getListEnv("CORS_ORIGINS", []string{"http://localhost:5173"}),

		RazorpayKeyID:         getEnvOrDefault("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnvOrDefault("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: getEnvOrDefault("RAZORPAY_WEBHOOK_SECRET", ""),
		RazorpayBaseURL:       getEnvOrDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com"),

		Currency:              getEnvOrDefault("CURRENCY", "INR"),
		ShippingFee:           getFloatEnv("SHIPPING_FEE", 49),
		FreeShippingThreshold: getFloatEnv("FREE_SHIPPING_THRESHOLD", 499),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.ShippingFee < 0 || c.FreeShippingThreshold < 0 {
		errs = append(errs, errors.New("shipping amounts must not be negative"))
	}
	return errors.Join(errs...)
}

// PaymentsEnabled reports whether Razorpay credentials are configured.
func (c Config) PaymentsEnabled() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}
