package llm

import (
	"context"
	"fmt"
	"strings"

	"liora/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
	ProviderGemini = "gemini"
)

// Factory creates LLM clients from configured credentials.
type Factory struct {
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
	GeminiAPIKey       string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
		GeminiAPIKey:       cfg.GeminiAPIKey,
	}
}

func (f *Factory) CreateClient(ctx context.Context, provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, model, f.OpenRouterReferrer, f.OpenRouterTitle), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	case ProviderGemini:
		return NewGemini(ctx, f.GeminiAPIKey, model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
