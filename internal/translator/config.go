package translator

import (
	"fmt"
	"time"
)

const (
	// DefaultModel is the chat model used for polishing
	DefaultModel = "gpt-4"
	// DefaultTemperature is the sampling temperature used for polishing
	DefaultTemperature = 0.7
	// DefaultTimeout bounds a single provider call
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3
	// DefaultRetryBase is the first backoff delay
	DefaultRetryBase = 500 * time.Millisecond
	// DefaultTargetLanguage is the translation target
	DefaultTargetLanguage = "ja"
	// MaxTextLength is the largest passage the Google endpoint accepts
	MaxTextLength = 5000
	// GoogleTranslateURL is the public translate endpoint
	GoogleTranslateURL = "https://translate.googleapis.com"
)

// ProviderConfig holds the settings shared by the translation and
// polishing providers.
type ProviderConfig struct {
	// Translation
	GoogleBaseURL  string `json:"google_base_url"`
	SourceLanguage string `json:"source_language"` // "auto" detects
	TargetLanguage string `json:"target_language"`

	// Polishing
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`

	// Transport
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryBase  time.Duration `json:"retry_base"`
}

// DefaultConfig returns provider settings with sensible defaults.
func DefaultConfig() *ProviderConfig {
	return &ProviderConfig{
		GoogleBaseURL:  GoogleTranslateURL,
		SourceLanguage: "auto",
		TargetLanguage: DefaultTargetLanguage,
		Model:          DefaultModel,
		Temperature:    DefaultTemperature,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryBase:      DefaultRetryBase,
	}
}

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string      // The field that failed validation
	Value   interface{} // The invalid value
	Message string      // Description of the error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// ConfigValidationResult holds the result of config validation
type ConfigValidationResult struct {
	IsValid bool
	Errors  []*ConfigValidationError
}

func (r *ConfigValidationResult) add(field string, value interface{}, message string) {
	r.IsValid = false
	r.Errors = append(r.Errors, &ConfigValidationError{Field: field, Value: value, Message: message})
}

// ValidateConfig checks that all values are within acceptable ranges.
// The API key is not checked here; only the polisher needs it.
func ValidateConfig(config *ProviderConfig) *ConfigValidationResult {
	result := &ConfigValidationResult{
		IsValid: true,
		Errors:  make([]*ConfigValidationError, 0),
	}

	if config == nil {
		result.add("config", nil, "configuration cannot be nil")
		return result
	}

	if config.TargetLanguage == "" {
		result.add("TargetLanguage", config.TargetLanguage, "must not be empty")
	} else if _, err := ParseLanguage(config.TargetLanguage); err != nil {
		result.add("TargetLanguage", config.TargetLanguage, "must be a BCP-47 language code")
	}
	if config.SourceLanguage != "" && config.SourceLanguage != "auto" {
		if _, err := ParseLanguage(config.SourceLanguage); err != nil {
			result.add("SourceLanguage", config.SourceLanguage, "must be \"auto\" or a BCP-47 language code")
		}
	}

	if config.Temperature < 0 || config.Temperature > 2 {
		result.add("Temperature", config.Temperature, "must be between 0 and 2")
	}
	if config.Timeout < 0 {
		result.add("Timeout", config.Timeout, "must be non-negative")
	}
	if config.MaxRetries < 0 {
		result.add("MaxRetries", config.MaxRetries, "must be non-negative")
	} else if config.MaxRetries > 10 {
		result.add("MaxRetries", config.MaxRetries, "must not exceed 10")
	}
	if config.RetryBase < 0 {
		result.add("RetryBase", config.RetryBase, "must be non-negative")
	}

	return result
}

// withDefaults fills zero values from DefaultConfig.
func (c ProviderConfig) withDefaults() ProviderConfig {
	d := DefaultConfig()
	if c.GoogleBaseURL == "" {
		c.GoogleBaseURL = d.GoogleBaseURL
	}
	if c.SourceLanguage == "" {
		c.SourceLanguage = d.SourceLanguage
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = d.TargetLanguage
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.RetryBase == 0 {
		c.RetryBase = d.RetryBase
	}
	return c
}
