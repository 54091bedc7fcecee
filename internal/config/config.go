package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default prompts match the behavior the bot shipped with; both can be
// overridden through the environment.
const (
	defaultSystemPrompt = "Ты эксперт по перефразированию текстов. Делай только небольшие изменения: " +
		"меняй синонимы, переставляй слова, немного меняй структуру предложений, " +
		"но сохраняй точный смысл, стиль и длину оригинала. " +
		"Не добавляй и не убирай информацию. " +
		"Выдай только 1 вариант. Выдай только результат без лишних комментариев."
	defaultUserPrompt = "Перефразируй этот текст с минимальными изменениями:"
)

// Config holds the application configuration.
type Config struct {
	AppEnv      string
	Debug       bool
	Version     string
	SentryDSN   string
	DefaultLang string

	// Telegram user client (channel scanning and dispatch).
	TelegramAPIID   int
	TelegramAPIHash string
	SessionFile     string

	// Repost settings.
	SourceChannels []string
	TargetChannel  string // numeric id or @handle, resolved at dispatch time
	PeriodHours    int
	MinViews       int
	MinReactions   int
	MinComments    int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	HistoryFile    string

	// Paraphrase service.
	ParaphraseAPIKey           string
	ParaphraseBaseURL          string
	ParaphraseModels           []string
	ParaphraseTemperature      float32
	ParaphraseTopP             float32
	ParaphraseMaxTokens        int
	ParaphraseFrequencyPenalty float32
	ParaphrasePresencePenalty  float32
	ParaphraseSystemPrompt     string
	ParaphraseUserPrompt       string

	// Optional run-report delivery over the Bot API.
	ReportBotToken string
	ReportChatID   int64

	// Optional published-post audit log.
	MongoDBURI      string
	MongoDBDatabase string
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	apiID, err := getEnvInt("TELEGRAM_API_ID", 0)
	if err != nil {
		return nil, err
	}
	periodHours, err := getEnvInt("PERIOD_HOURS", 24)
	if err != nil {
		return nil, err
	}
	minViews, err := getEnvInt("MIN_VIEWS", 0)
	if err != nil {
		return nil, err
	}
	minReactions, err := getEnvInt("MIN_REACTIONS", 0)
	if err != nil {
		return nil, err
	}
	minComments, err := getEnvInt("MIN_COMMENTS", 0)
	if err != nil {
		return nil, err
	}
	minDelay, err := getEnvSeconds("MIN_DELAY", 5)
	if err != nil {
		return nil, err
	}
	maxDelay, err := getEnvSeconds("MAX_DELAY", 15)
	if err != nil {
		return nil, err
	}
	maxTokens, err := getEnvInt("PARAPHRASE_MAX_TOKENS", 512)
	if err != nil {
		return nil, err
	}
	temperature, err := getEnvFloat32("PARAPHRASE_TEMPERATURE", 0.65)
	if err != nil {
		return nil, err
	}
	topP, err := getEnvFloat32("PARAPHRASE_TOP_P", 0.9)
	if err != nil {
		return nil, err
	}
	freqPenalty, err := getEnvFloat32("PARAPHRASE_FREQUENCY_PENALTY", 0.2)
	if err != nil {
		return nil, err
	}
	presPenalty, err := getEnvFloat32("PARAPHRASE_PRESENCE_PENALTY", 0.1)
	if err != nil {
		return nil, err
	}

	var reportChatID int64
	if raw := getEnv("REPORT_CHAT_ID", ""); raw != "" {
		reportChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REPORT_CHAT_ID: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Debug:       debug,
		Version:     getEnv("VERSION", "dev"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
		DefaultLang: getEnv("LANG_DEFAULT", "ru"),

		TelegramAPIID:   apiID,
		TelegramAPIHash: getEnv("TELEGRAM_API_HASH", ""),
		SessionFile:     getEnv("TELEGRAM_SESSION_FILE", "reposter.session.json"),

		SourceChannels: splitList(getEnv("SOURCE_CHANNELS", "")),
		TargetChannel:  getEnv("TARGET_CHANNEL", ""),
		PeriodHours:    periodHours,
		MinViews:       minViews,
		MinReactions:   minReactions,
		MinComments:    minComments,
		MinDelay:       minDelay,
		MaxDelay:       maxDelay,
		HistoryFile:    getEnv("HISTORY_FILE", "sent_posts.json"),

		ParaphraseAPIKey:           getEnv("PARAPHRASE_API_KEY", ""),
		ParaphraseBaseURL:          getEnv("PARAPHRASE_BASE_URL", ""),
		ParaphraseModels:           splitList(getEnv("PARAPHRASE_MODELS", "")),
		ParaphraseTemperature:      temperature,
		ParaphraseTopP:             topP,
		ParaphraseMaxTokens:        maxTokens,
		ParaphraseFrequencyPenalty: freqPenalty,
		ParaphrasePresencePenalty:  presPenalty,
		ParaphraseSystemPrompt:     getEnv("PARAPHRASE_SYSTEM_PROMPT", defaultSystemPrompt),
		ParaphraseUserPrompt:       getEnv("PARAPHRASE_USER_PROMPT", defaultUserPrompt),

		ReportBotToken: getEnv("REPORT_BOT_TOKEN", ""),
		ReportChatID:   reportChatID,

		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings eagerly so a bad configuration aborts
// the run before any network work starts.
func (c *Config) Validate() error {
	if c.TelegramAPIID == 0 {
		return fmt.Errorf("TELEGRAM_API_ID is required")
	}
	if c.TelegramAPIHash == "" {
		return fmt.Errorf("TELEGRAM_API_HASH is required")
	}
	if len(c.SourceChannels) == 0 {
		return fmt.Errorf("SOURCE_CHANNELS is required")
	}
	if c.TargetChannel == "" {
		return fmt.Errorf("TARGET_CHANNEL is required")
	}
	if c.ParaphraseAPIKey == "" {
		return fmt.Errorf("PARAPHRASE_API_KEY is required")
	}
	if len(c.ParaphraseModels) == 0 {
		return fmt.Errorf("PARAPHRASE_MODELS must list at least one model")
	}
	if c.PeriodHours <= 0 {
		return fmt.Errorf("PERIOD_HOURS must be positive, got %d", c.PeriodHours)
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("MIN_DELAY (%s) cannot exceed MAX_DELAY (%s)", c.MinDelay, c.MaxDelay)
	}
	if c.MongoDBURI != "" && c.MongoDBDatabase == "" {
		return fmt.Errorf("MONGODB_DATABASE is required when MONGODB_URI is set")
	}
	if c.ReportBotToken != "" && c.ReportChatID == 0 {
		return fmt.Errorf("REPORT_CHAT_ID is required when REPORT_BOT_TOKEN is set")
	}
	if c.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	return nil
}

// TargetChannelID returns the target as a numeric channel id when the
// configured value parses as one. Otherwise the target is a username
// handle, available via TargetChannelHandle.
func (c *Config) TargetChannelID() (int64, bool) {
	id, err := strconv.ParseInt(c.TargetChannel, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// TargetChannelHandle returns the target username without a leading @ or
// t.me prefix.
func (c *Config) TargetChannelHandle() string {
	return NormalizeChannelRef(c.TargetChannel)
}

// NormalizeChannelRef strips @ prefixes and t.me links from a channel
// reference, leaving the bare username.
func NormalizeChannelRef(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "https://t.me/")
	ref = strings.TrimPrefix(ref, "t.me/")
	return strings.TrimPrefix(ref, "@")
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvFloat32(key string, defaultValue float32) (float32, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return float32(v), nil
}

// getEnvSeconds parses a duration given as a number of seconds,
// fractional values allowed.
func getEnvSeconds(key string, defaultValue float64) (time.Duration, error) {
	raw := getEnv(key, "")
	seconds := defaultValue
	if raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		seconds = v
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
