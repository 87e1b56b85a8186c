package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type Config struct {
	Port  string
	Env   string
	Store string // "mongo" or "memory"

	Mongo Mongo
	Redis Redis

	JWTSecret     []byte
	InvoiceSecret []byte

	Pricing Pricing

	OrderNumberRetries int

	RateLimitRPS   float64
	RateLimitBurst int
}

type Mongo struct {
	URI      string
	Database string
}

type Redis struct {
	Addr     string
	Password string
	Channel  string
}

// Enabled reports whether a Redis address was configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

type Pricing struct {
	TaxRate          float64
	ShippingFlat     float64
	FreeShippingOver float64
}

func (c *Config) IsDev() bool { return c.Env == "development" }

// Load reads the environment. godotenv.Load is expected to have run already.
// Outside development JWT_SECRET and INVOICE_SECRET must be set.
func Load(log *zap.Logger) (*Config, error) {
	cfg := &Config{
		Port:  normalizePort(getEnv("PORT", ":8080")),
		Env:   getEnv("ENV", "production"),
		Store: strings.ToLower(getEnv("STORE", "mongo")),
		Mongo: Mongo{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "spicery"),
		},
		Redis: Redis{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			Channel:  getEnv("REDIS_CHANNEL", "order-events"),
		},
		Pricing: Pricing{
			TaxRate:          floatEnv("TAX_RATE", 0.05, log),
			ShippingFlat:     floatEnv("SHIPPING_FLAT", 4.99, log),
			FreeShippingOver: floatEnv("FREE_SHIPPING_OVER", 50, log),
		},
		OrderNumberRetries: intEnv("ORDER_NUMBER_RETRIES", 5, log),
		RateLimitRPS:       floatEnv("RATE_LIMIT_RPS", 5, log),
		RateLimitBurst:     intEnv("RATE_LIMIT_BURST", 10, log),
	}

	var err error
	if cfg.JWTSecret, err = cfg.secret("JWT_SECRET", "dev-secret-change-me", log); err != nil {
		return nil, err
	}
	if cfg.InvoiceSecret, err = cfg.secret("INVOICE_SECRET", "dev-invoice-secret", log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// secret reads a signing key. Only development may fall back to a built-in
// key, since anyone can read it.
func (c *Config) secret(key, devDefault string, log *zap.Logger) ([]byte, error) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return []byte(val), nil
	}
	if !c.IsDev() {
		log.Error("required environment variable not set", zap.String("key", key), zap.String("env", c.Env))
		return nil, fmt.Errorf("%s must be set when ENV is %q", key, c.Env)
	}
	log.Warn("environment variable not set, using development default", zap.String("key", key))
	return []byte(devDefault), nil
}

func normalizePort(port string) string {
	if port != "" && port[0] != ':' {
		return ":" + port
	}
	return port
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func floatEnv(key string, def float64, log *zap.Logger) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		log.Warn("invalid number in environment, using default", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}

func intEnv(key string, def int, log *zap.Logger) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Warn("invalid integer in environment, using default", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}
