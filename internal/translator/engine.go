package translator

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"story-localizer/internal/logger"
	"story-localizer/internal/types"
)

// NewChatModel builds the OpenAI-compatible chat model used for polishing.
func NewChatModel(ctx context.Context, cfg ProviderConfig) (*openai.ChatModel, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "API key is not configured", nil)
	}

	temperature := float32(cfg.Temperature)
	chatModelConfig := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: &temperature,
		Timeout:     cfg.Timeout,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = normalizeBaseURL(cfg.BaseURL)
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}
	logger.Debug("chat model ready",
		logger.String("model", cfg.Model),
		logger.String("baseURL", chatModelConfig.BaseURL))
	return chatModel, nil
}

// normalizeBaseURL strips a trailing /chat/completions, which the client
// appends itself.
func normalizeBaseURL(url string) string {
	url = strings.TrimSuffix(url, "/")

	if !strings.HasSuffix(url, "/chat/completions") {
		return url
	}

	result := strings.TrimSuffix(url, "/chat/completions")
	logger.Debug("API URL normalized", logger.String("original", url), logger.String("normalized", result))
	return result
}
