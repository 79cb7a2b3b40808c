package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sethvargo/go-retry"

	"story-localizer/internal/logger"
	"story-localizer/internal/types"
)

const polishPromptTemplate = `
You are a professional %[1]s writer. Polish the following story passage so that it sounds natural and native-level fluent in %[1]s.
Preserve the meaning and tone. Do not translate literally. Only return the revised passage in %[1]s.

---

%[2]s

---
`

// Polisher rewrites passages into fluent prose through a chat model.
// Safe for concurrent use if the underlying model is.
type Polisher struct {
	model       model.BaseChatModel
	language    string
	temperature float32
	maxRetries  int
	retryBase   time.Duration
}

// NewPolisher creates a polisher writing in cfg.TargetLanguage.
func NewPolisher(chatModel model.BaseChatModel, cfg ProviderConfig) *Polisher {
	cfg = cfg.withDefaults()
	return &Polisher{
		model:       chatModel,
		language:    LanguageName(cfg.TargetLanguage),
		temperature: float32(cfg.Temperature),
		maxRetries:  cfg.MaxRetries,
		retryBase:   cfg.RetryBase,
	}
}

// Language returns the display name embedded in prompts.
func (p *Polisher) Language() string {
	return p.language
}

// BuildPrompt renders the polishing instruction for text.
func (p *Polisher) BuildPrompt(text string) string {
	return fmt.Sprintf(polishPromptTemplate, p.language, text)
}

// Polish returns the polished form of text, trimmed.
func (p *Polisher) Polish(ctx context.Context, text string) (string, error) {
	logger.Debug("sending passage for polishing", logger.String("preview", truncateString(text, 60)))
	return p.Complete(ctx, p.BuildPrompt(text))
}

// Translate implements Translator so a Polisher can back a transform pass.
func (p *Polisher) Translate(ctx context.Context, text string) (string, error) {
	return p.Polish(ctx, text)
}

// Complete sends prompt as a single user message and returns the trimmed
// reply. Rate limits, server errors and network failures are retried with
// exponential backoff.
func (p *Polisher) Complete(ctx context.Context, prompt string) (string, error) {
	if p.model == nil {
		return "", types.NewAppError(types.ErrConfig, "chat model is not configured", nil)
	}

	backoff := retry.WithMaxRetries(uint64(max(p.maxRetries, 0)), retry.NewExponential(p.retryBase))

	var reply string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		msg, callErr := p.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)},
			model.WithTemperature(p.temperature))
		if callErr != nil {
			appErr := classifyModelError(callErr)
			if isRetryableAPIError(appErr) && ctx.Err() == nil {
				logger.Warn("chat model call failed, retrying",
					logger.Int("attempt", attempt),
					logger.Err(callErr))
				return retry.RetryableError(appErr)
			}
			return appErr
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return types.NewAppError(types.ErrAPICall, "empty completion", nil)
		}
		reply = strings.TrimSpace(msg.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
