package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Durability controls what happens to a chat message or DM whose write to the
// store failed.
type Durability string

const (
	// DurabilityBestEffort logs the failure and still broadcasts.
	DurabilityBestEffort Durability = "best_effort"
	// DurabilityStrict drops the message instead of broadcasting it.
	DurabilityStrict Durability = "strict"
)

type Config struct {
	Port      string
	StaticDir string
	LogLevel  string
	LogFormat string

	MongoURI         string
	MongoDB          string
	SnapshotPath     string
	SnapshotInterval time.Duration

	RedisURL string

	AdminKey  string
	JWTSecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	OpenAIKey           string
	OpenAIModel         string
	AIMaxTokens         int

	UpstreamTimeout time.Duration
	PersistTimeout  time.Duration
	ChatDurability  Durability

	WSRateLimit float64
	WSRateBurst int
}

// Load resolves the configuration from the environment. A .env file in the
// working directory is read first when present; real env vars win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("[CONFIG] Failed to read .env", "error", err)
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		StaticDir: getEnv("STATIC_DIR", "public"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		MongoURI:         getEnv("MONGO_URI", ""),
		MongoDB:          getEnv("MONGO_DB", "promohub"),
		SnapshotPath:     getEnv("SNAPSHOT_PATH", "data/snapshot.json"),
		SnapshotInterval: getEnvDuration("SNAPSHOT_INTERVAL", 30*time.Second),

		RedisURL: getEnv("REDIS_URL", ""),

		AdminKey:  getEnv("ADMIN_KEY", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AIMaxTokens:         getEnvInt("AI_MAX_TOKENS", 600),

		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 20*time.Second),
		PersistTimeout:  getEnvDuration("PERSIST_TIMEOUT", 5*time.Second),
		ChatDurability:  parseDurability(getEnv("CHAT_DURABILITY", string(DurabilityBestEffort))),

		WSRateLimit: float64(getEnvInt("WS_RATE_LIMIT", 20)),
		WSRateBurst: getEnvInt("WS_RATE_BURST", 40),
	}
}

func parseDurability(v string) Durability {
	if Durability(strings.ToLower(strings.TrimSpace(v))) == DurabilityStrict {
		return DurabilityStrict
	}
	return DurabilityBestEffort
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if i, err := strconv.Atoi(value); err == nil {
		return time.Duration(i) * time.Second
	}
	return fallback
}
