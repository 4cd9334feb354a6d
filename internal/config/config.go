package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Load reads the .env file specified by VERITAS_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("VERITAS_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; the process environment still applies.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StoreDriver selects the ledger backend. Defaults to postgres when
// DATABASE_URL is set and memory otherwise.
func StoreDriver() string {
	switch d := os.Getenv("STORE_DRIVER"); d {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
		return d
	}
	if DatabaseURL() != "" {
		return StoreDriverPostgres
	}
	return StoreDriverMemory
}

// SQLitePath is the database file used by the sqlite driver.
// Defaults to "veritas.db".
func SQLitePath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		return "veritas.db"
	}
	return p
}

// RedisURL enables mirroring of stream events when set.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "openai" if not set.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, gemini, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// APIKeyFor returns the key for a named provider.
func APIKeyFor(provider string) string {
	switch provider {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	return APIKeyFor(LLMProvider())
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	return APIKeyFor(EmbeddingProvider())
}

// CouncilConfigPath is the YAML roster file. Empty means the built-in roster.
func CouncilConfigPath() string {
	return os.Getenv("COUNCIL_CONFIG")
}

// BranchTimeout bounds each knowledge branch call. Defaults to 20s.
func BranchTimeout() time.Duration {
	return durationEnv("BRANCH_TIMEOUT", 20*time.Second)
}

// MemberTimeout bounds each council member call. Defaults to 30s.
func MemberTimeout() time.Duration {
	return durationEnv("MEMBER_TIMEOUT", 30*time.Second)
}

// AuditRetentionDays is the audit trail retention window. 0 disables
// trimming, which is the default.
func AuditRetentionDays() int {
	days, err := strconv.Atoi(os.Getenv("AUDIT_RETENTION_DAYS"))
	if err != nil || days < 0 {
		return 0
	}
	return days
}

// AuditRetentionKeep is the number of newest entries always kept per claim.
// Defaults to 50.
func AuditRetentionKeep() int {
	keep, err := strconv.Atoi(os.Getenv("AUDIT_RETENTION_KEEP"))
	if err != nil || keep <= 0 {
		return 50
	}
	return keep
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// durationEnv accepts Go durations ("15s") or bare seconds ("15").
func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}
