package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
	ProviderGemini LLMProvider = "gemini"
)

type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AdminUserID      int64   `env:"ADMIN_USER"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`
	GeminiAPIKey     string      `env:"GEMINI_API_KEY"`
	GeminiModel      string      `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Personas
	DefaultPersona   string `env:"DEFAULT_PERSONA" envDefault:"liora"`
	PersonasFilePath string `env:"PERSONAS_FILE_PATH"`

	// Encyclopedia
	WikiLanguage      string        `env:"WIKI_LANGUAGE" envDefault:"en"`
	WikiTimeout       time.Duration `env:"WIKI_TIMEOUT" envDefault:"8s"`
	WikiRatePerSecond float64       `env:"WIKI_RATE_PER_SECOND" envDefault:"5"`

	// Storage
	LearningFilePath      string `env:"LEARNING_FILE_PATH" envDefault:"data/learning.json"`
	ConversationsFilePath string `env:"CONVERSATIONS_FILE_PATH" envDefault:"data/conversations.json"`
	LogFilePath           string `env:"LOG_FILE_PATH" envDefault:"logs/log.jsonl"`
	UsersFilePath         string `env:"USERS_FILE_PATH" envDefault:"data/users.json"`
	PendingUsersFilePath  string `env:"PENDING_USERS_FILE_PATH" envDefault:"data/pending_users.json"`

	// Conversation
	HistoryWindow int `env:"HISTORY_WINDOW" envDefault:"6"`

	// Reports
	DailyReportSpec string `env:"DAILY_REPORT_SPEC" envDefault:"0 21 * * *"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}
	return cfg, nil
}

// Model returns the model name configured for the selected provider.
func (c *Config) Model() string {
	switch c.LLMProvider {
	case ProviderGemini:
		return c.GeminiModel
	case ProviderYandex:
		return ""
	default:
		return c.OpenAIModel
	}
}
