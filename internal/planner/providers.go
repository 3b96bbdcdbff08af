package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

// Provider names.
const (
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderDeepSeek = "deepseek"
	ProviderArk      = "ark"
	ProviderStatic   = "static"
)

// Config selects a planner.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	// StaticCode is the code returned by the static provider.
	StaticCode string
}

// New builds the planner named by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Planner, error) {
	if cfg.Provider == ProviderStatic {
		return Static{Code: cfg.StaticCode}, nil
	}
	chat, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewLLM(chat, logger), nil
}

// NewChatModel builds the chat model for cfg.Provider. Sampling is
// deterministic where the provider allows it.
func NewChatModel(ctx context.Context, cfg Config) (einomodel.BaseChatModel, error) {
	var temperature float32

	switch cfg.Provider {
	case ProviderOpenAI:
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return m, nil

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Options: &api.Options{Temperature: temperature},
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama chat model: %w", err)
		}
		return m, nil

	case ProviderDeepSeek:
		m, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek chat model: %w", err)
		}
		return m, nil

	case ProviderArk:
		m, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("create ark chat model: %w", err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported planner provider: %q", cfg.Provider)
	}
}
