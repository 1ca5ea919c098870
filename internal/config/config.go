// Package config loads and validates environment configuration for the bot.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken    = "TELEGRAM_TOKEN"
	KeyMongoURI         = "MONGO_URI"
	KeyMongoDB          = "MONGO_DB"
	KeyOpenRouterAPIKey = "OPENROUTER_API_KEY"
	KeyOpenRouterModel  = "OPENROUTER_MODEL"
	KeyQAPath           = "QA_PATH"
	KeyDailyLimit       = "DAILY_MESSAGE_LIMIT"
	KeyGenerateTimeout  = "GENERATE_TIMEOUT_SECONDS"
	KeyAppEnv           = "APP_ENV"
	KeyLogLevel         = "LOG_LEVEL"
	KeyHTTPPort         = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv          = EnvProduction
	DefaultLogLevel        = "info"
	DefaultHTTPPort        = 8080
	DefaultQAPath          = "data/qa.json"
	DefaultDailyLimit      = 200
	DefaultGenerateTimeout = 45 * time.Second
	DefaultOpenRouterModel = "google/gemini-2.5-pro-preview-03-25"

	// Recommended database names by environment.
	DefaultMongoDBProd = "support_bot"
	DefaultMongoDBDev  = "support_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyOpenRouterAPIKey,
		Example:     "sk-or-v1-...",
		Required:    true,
		Description: "OpenRouter API key used by the answer generator.",
	},
	{
		Key:         KeyOpenRouterModel,
		Example:     DefaultOpenRouterModel,
		Default:     DefaultOpenRouterModel,
		Description: "Chat model requested from OpenRouter.",
	},
	{
		Key:         KeyQAPath,
		Example:     DefaultQAPath,
		Default:     DefaultQAPath,
		Description: "Path to the exact-match question/answer JSON file.",
	},
	{
		Key:         KeyDailyLimit,
		Example:     strconv.Itoa(DefaultDailyLimit),
		Default:     strconv.Itoa(DefaultDailyLimit),
		Description: "Maximum answered messages per user per calendar day.",
	},
	{
		Key:         KeyGenerateTimeout,
		Example:     "45",
		Default:     "45",
		Description: "Upper bound in seconds for a single answer-generation call.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/metrics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken    string
	MongoURI         string
	MongoDB          string
	OpenRouterAPIKey string
	OpenRouterModel  string
	QAPath           string
	DailyLimit       int
	GenerateTimeout  time.Duration
	AppEnv           string
	LogLevel         string
	HTTPPort         int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:           firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:    strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MongoURI:         strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:          strings.TrimSpace(os.Getenv(KeyMongoDB)),
		OpenRouterAPIKey: strings.TrimSpace(os.Getenv(KeyOpenRouterAPIKey)),
		OpenRouterModel:  firstNonEmpty(strings.TrimSpace(os.Getenv(KeyOpenRouterModel)), DefaultOpenRouterModel),
		QAPath:           firstNonEmpty(strings.TrimSpace(os.Getenv(KeyQAPath)), DefaultQAPath),
		LogLevel:         firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		DailyLimit:       DefaultDailyLimit,
		GenerateTimeout:  DefaultGenerateTimeout,
		HTTPPort:         DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if cfg.OpenRouterAPIKey == "" {
		missing = append(missing, KeyOpenRouterAPIKey)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if err := validateMongoURI(cfg.MongoURI); err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(os.Getenv(KeyDailyLimit)); raw != "" {
		limit, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyDailyLimit, parseErr)
		}
		if limit <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyDailyLimit)
		}
		cfg.DailyLimit = limit
	}

	if raw := strings.TrimSpace(os.Getenv(KeyGenerateTimeout)); raw != "" {
		seconds, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyGenerateTimeout, parseErr)
		}
		if seconds <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyGenerateTimeout)
		}
		cfg.GenerateTimeout = time.Duration(seconds) * time.Second
	}

	if raw := strings.TrimSpace(os.Getenv(KeyHTTPPort)); raw != "" {
		port, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the resolved configuration with secrets masked, for
// startup diagnostics and the --config-only flag.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"telegram_token: " + maskSecret(cfg.TelegramToken),
		"mongo_uri: " + redactURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"openrouter_api_key: " + maskSecret(cfg.OpenRouterAPIKey),
		"openrouter_model: " + cfg.OpenRouterModel,
		"qa_path: " + cfg.QAPath,
		"daily_message_limit: " + strconv.Itoa(cfg.DailyLimit),
		"generate_timeout: " + cfg.GenerateTimeout.String(),
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "redacted"
	}
	return value[:4] + "...redacted"
}

func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}

	parsed.User = nil
	return parsed.String()
}

func validateMongoURI(raw string) error {
	if strings.HasPrefix(raw, "mongodb://") || strings.HasPrefix(raw, "mongodb+srv://") {
		return nil
	}

	return fmt.Errorf("invalid %s: must use mongodb:// or mongodb+srv:// scheme", KeyMongoURI)
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
