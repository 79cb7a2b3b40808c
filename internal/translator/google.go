package translator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"story-localizer/internal/logger"
	"story-localizer/internal/types"
)

// GoogleTranslator translates passages through the public Google
// translate endpoint. Safe for concurrent use.
type GoogleTranslator struct {
	client *resty.Client
	source string
	target string
}

// NewGoogleTranslator creates a translator for cfg.TargetLanguage.
func NewGoogleTranslator(cfg ProviderConfig) *GoogleTranslator {
	cfg = cfg.withDefaults()

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.GoogleBaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryBase).
		SetRetryMaxWaitTime(cfg.RetryBase * 8)
	client.AddRetryCondition(retryCondition)

	return &GoogleTranslator{
		client: client,
		source: cfg.SourceLanguage,
		target: NormalizeLanguage(cfg.TargetLanguage),
	}
}

// retryCondition retries network errors, throttling and server errors.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

// Target returns the target language code.
func (g *GoogleTranslator) Target() string {
	return g.target
}

// Translate returns text in the target language. Blank text is returned
// unchanged without a request.
func (g *GoogleTranslator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "text too long to translate",
			fmt.Sprintf("length %d exceeds %d", n, MaxTextLength), nil)
	}

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     g.source,
			"tl":     g.target,
			"dt":     "t",
		}).
		SetQueryParam("q", text).
		Get("/translate_a/single")
	if err != nil {
		logger.Debug("translate request failed", logger.Err(err))
		return "", types.NewAppError(types.ErrNetwork, "translate request failed", err)
	}
	if resp.IsError() {
		logger.Debug("translate request rejected", logger.Int("statusCode", resp.StatusCode()))
		return "", handleAPIHTTPError(resp.StatusCode(), resp.Body())
	}

	translated, err := parseGoogleResponse(resp.Body())
	if err != nil {
		return "", err
	}

	logger.Debug("translated passage",
		logger.String("target", g.target),
		logger.Int("chars", utf8.RuneCountInString(text)),
		logger.Int64("elapsedMs", time.Since(start).Milliseconds()))
	return translated, nil
}

// parseGoogleResponse joins the translated segments of a
// translate_a/single response: [[["seg","orig",...],...],...].
func parseGoogleResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", types.NewAppErrorWithDetails(types.ErrAPICall, "malformed translate response",
			truncateString(string(body), 120), nil)
	}

	var sb strings.Builder
	gjson.GetBytes(body, "0.#.0").ForEach(func(_, seg gjson.Result) bool {
		sb.WriteString(seg.String())
		return true
	})
	if sb.Len() == 0 {
		return "", types.NewAppError(types.ErrAPICall, "empty translate response", nil)
	}
	return sb.String(), nil
}
