// Package config reads process settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"autoparts-checkout/internal/coupon"
	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/pricing"
)

type Log struct {
	Level  string
	Format string
}

type Gateway struct {
	Kind    string // "paystack" or "mock"
	BaseURL string
	Secret  string
}

type Storefront struct {
	Addr           string
	AllowedOrigins []string
	CookieName     string
	CookieSecure   bool
	CartAPIURL     string
	OrderAPIURL    string
	CallbackURL    string
	StageStore     string // "bolt", "redis" or "memory"
	BoltPath       string
	RedisAddr      string
	SessionTTL     time.Duration
	Fees           pricing.FeeTable
	Coupons        coupon.StaticCatalog
	Gateway        Gateway
	Log            Log
}

type Database struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
}

func (d Database) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

type Backend struct {
	Addr           string
	AllowedOrigins []string
	DB             Database
	WebhookSecret  string
	APITokens      []string
	KafkaBrokers   []string
	KafkaTopic     string
	ReconcileEvery time.Duration
	ReconcileAfter time.Duration
	Gateway        Gateway
	Log            Log
}

func LoadStorefront() (*Storefront, error) {
	fees, err := loadFees()
	if err != nil {
		return nil, err
	}
	coupons, err := coupon.ParseCatalog(os.Getenv("COUPONS"))
	if err != nil {
		return nil, fmt.Errorf("COUPONS: %w", err)
	}
	ttl, err := getDuration("SESSION_TTL", 72*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Storefront{
		Addr:           ":" + getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CookieName:     getEnv("SESSION_COOKIE", "checkout_session"),
		CookieSecure:   getBool("SESSION_COOKIE_SECURE", false),
		CartAPIURL:     getEnv("CATALOG_API_URL", "http://localhost:8000/api"),
		OrderAPIURL:    getEnv("ORDER_API_URL", "http://localhost:8081"),
		CallbackURL:    getEnv("PAYMENT_CALLBACK_URL", "http://localhost:3000/checkout/payment"),
		StageStore:     getEnv("STAGE_STORE", "bolt"),
		BoltPath:       getEnv("BOLT_PATH", "checkout.db"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		SessionTTL:     ttl,
		Fees:           fees,
		Coupons:        coupons,
		Gateway:        loadGateway(),
		Log:            loadLog(),
	}
	switch cfg.StageStore {
	case "bolt", "redis", "memory":
	default:
		return nil, fmt.Errorf("STAGE_STORE: unknown store %q", cfg.StageStore)
	}
	return cfg, nil
}

func LoadBackend() (*Backend, error) {
	every, err := getDuration("RECONCILE_EVERY", 30*time.Second)
	if err != nil {
		return nil, err
	}
	after, err := getDuration("RECONCILE_AFTER", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Backend{
		Addr:           ":" + getEnv("BACKEND_PORT", "8081"),
		AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		DB: Database{
			Host:     getEnv("BLUEPRINT_DB_HOST", "localhost"),
			Port:     getEnv("BLUEPRINT_DB_PORT", "5432"),
			Database: getEnv("BLUEPRINT_DB_DATABASE", "autoparts"),
			Username: getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
			Password: os.Getenv("BLUEPRINT_DB_PASSWORD"),
			Schema:   getEnv("BLUEPRINT_DB_SCHEMA", "public"),
		},
		WebhookSecret:  os.Getenv("PAYSTACK_SECRET_KEY"),
		APITokens:      splitList(os.Getenv("ORDER_API_TOKENS")),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "checkout-events"),
		ReconcileEvery: every,
		ReconcileAfter: after,
		Gateway:        loadGateway(),
		Log:            loadLog(),
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("PAYSTACK_SECRET_KEY is required")
	}
	return cfg, nil
}

func loadGateway() Gateway {
	g := Gateway{
		Kind:    getEnv("GATEWAY", "paystack"),
		BaseURL: getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		Secret:  os.Getenv("PAYSTACK_SECRET_KEY"),
	}
	// without a key there is nothing to talk to
	if g.Secret == "" {
		g.Kind = "mock"
	}
	return g
}

func loadLog() Log {
	return Log{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

func loadFees() (pricing.FeeTable, error) {
	fees := pricing.DefaultFees()
	for dt, key := range map[domain.DeliveryType]string{
		domain.DeliveryStandard: "DELIVERY_FEE_STANDARD",
		domain.DeliveryExpress:  "DELIVERY_FEE_EXPRESS",
		domain.DeliveryPickup:   "DELIVERY_FEE_PICKUP",
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		fee, err := strconv.ParseFloat(v, 64)
		if err != nil || fee < 0 {
			return nil, fmt.Errorf("%s: invalid fee %q", key, v)
		}
		fees[dt] = fee
	}
	return fees, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
