package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		TelegramAPIID:    12345,
		TelegramAPIHash:  "hash",
		SourceChannels:   []string{"channel_one", "channel_two"},
		TargetChannel:    "@my_target",
		PeriodHours:      24,
		MinDelay:         5 * time.Second,
		MaxDelay:         15 * time.Second,
		ParaphraseAPIKey: "key",
		ParaphraseModels: []string{"model-a"},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api id", func(c *Config) { c.TelegramAPIID = 0 }},
		{"missing api hash", func(c *Config) { c.TelegramAPIHash = "" }},
		{"no source channels", func(c *Config) { c.SourceChannels = nil }},
		{"no target channel", func(c *Config) { c.TargetChannel = "" }},
		{"no paraphrase key", func(c *Config) { c.ParaphraseAPIKey = "" }},
		{"empty model list", func(c *Config) { c.ParaphraseModels = nil }},
		{"zero period", func(c *Config) { c.PeriodHours = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_DelayBounds(t *testing.T) {
	cfg := validConfig()
	cfg.MinDelay = 10 * time.Second
	cfg.MaxDelay = 5 * time.Second
	assert.Error(t, cfg.Validate())

	cfg.MinDelay = 5 * time.Second
	cfg.MaxDelay = 5 * time.Second
	assert.NoError(t, cfg.Validate(), "degenerate interval is valid")

	cfg.MinDelay = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidate_DependentOptions(t *testing.T) {
	cfg := validConfig()
	cfg.MongoDBURI = "mongodb://localhost:27017"
	assert.Error(t, cfg.Validate(), "mongo URI without database name")

	cfg.MongoDBDatabase = "reposter"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.ReportBotToken = "token"
	assert.Error(t, cfg.Validate(), "report bot without chat id")

	cfg.ReportChatID = 42
	assert.NoError(t, cfg.Validate())
}

func TestTargetChannelID(t *testing.T) {
	cfg := validConfig()
	cfg.TargetChannel = "-1001234567890"

	id, ok := cfg.TargetChannelID()
	require.True(t, ok)
	assert.Equal(t, int64(-1001234567890), id)

	cfg.TargetChannel = "@some_handle"
	_, ok = cfg.TargetChannelID()
	assert.False(t, ok)
	assert.Equal(t, "some_handle", cfg.TargetChannelHandle())
}

func TestNormalizeChannelRef(t *testing.T) {
	assert.Equal(t, "durov", NormalizeChannelRef("@durov"))
	assert.Equal(t, "durov", NormalizeChannelRef("https://t.me/durov"))
	assert.Equal(t, "durov", NormalizeChannelRef("t.me/durov"))
	assert.Equal(t, "durov", NormalizeChannelRef("  durov "))
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "hash")
	t.Setenv("SOURCE_CHANNELS", "one, two ,three")
	t.Setenv("TARGET_CHANNEL", "@target")
	t.Setenv("PARAPHRASE_API_KEY", "key")
	t.Setenv("PARAPHRASE_MODELS", "model-a,model-b")
	t.Setenv("MIN_DELAY", "2.5")
	t.Setenv("MAX_DELAY", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three"}, cfg.SourceChannels)
	assert.Equal(t, []string{"model-a", "model-b"}, cfg.ParaphraseModels)
	assert.Equal(t, 2500*time.Millisecond, cfg.MinDelay)
	assert.Equal(t, 7*time.Second, cfg.MaxDelay)
	// Defaults.
	assert.Equal(t, 24, cfg.PeriodHours)
	assert.Equal(t, 512, cfg.ParaphraseMaxTokens)
	assert.InDelta(t, 0.65, float64(cfg.ParaphraseTemperature), 1e-6)
	assert.Equal(t, "sent_posts.json", cfg.HistoryFile)
}

func TestLoadConfig_InvalidDelayBounds(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "hash")
	t.Setenv("SOURCE_CHANNELS", "one")
	t.Setenv("TARGET_CHANNEL", "@target")
	t.Setenv("PARAPHRASE_API_KEY", "key")
	t.Setenv("PARAPHRASE_MODELS", "model-a")
	t.Setenv("MIN_DELAY", "10")
	t.Setenv("MAX_DELAY", "5")

	_, err := LoadConfig()
	assert.Error(t, err)
}
