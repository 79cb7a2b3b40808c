// Package types defines core data types and enums for the story localizer.
package types

import "errors"

// Config holds the application configuration
type Config struct {
	OpenAIAPIKey  string  `json:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL string  `json:"openai_base_url" yaml:"openai_base_url"` // OpenAI compatible API base URL
	OpenAIModel   string  `json:"openai_model" yaml:"openai_model"`
	Temperature   float64 `json:"temperature" yaml:"temperature"` // polishing temperature, > 0 is expected
	// Translation settings
	SourceLanguage   string `json:"source_language" yaml:"source_language"` // "auto" lets the provider detect it
	TargetLanguage   string `json:"target_language" yaml:"target_language"` // BCP-47 code, e.g. "ja"
	TranslateBaseURL string `json:"translate_base_url" yaml:"translate_base_url"`
	CacheFile        string `json:"cache_file" yaml:"cache_file"` // optional translation cache, empty disables it
	// Corpus settings
	SkipTexts []string `json:"skip_texts" yaml:"skip_texts"` // canonical UI strings that are never transformed
	TextKey   string   `json:"text_key" yaml:"text_key"`
	StoryKey  string   `json:"story_key" yaml:"story_key"`
	Block     string   `json:"block" yaml:"block"` // story block name, empty means the root holds the story
	CharLimit int      `json:"char_limit" yaml:"char_limit"`
	// Execution settings
	Concurrency    int `json:"concurrency" yaml:"concurrency"`
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int `json:"max_retries" yaml:"max_retries"`
}

// Pass identifies one complete application of a component over a document
type Pass string

const (
	PassTranslate Pass = "translate"
	PassPolish    Pass = "polish"
	PassDedupe    Pass = "dedupe"
	PassAudit     Pass = "audit"
	PassValidate  Pass = "validate"
	PassKeys      Pass = "keys"
)

// ErrorCode enumerates error kinds
type ErrorCode string

const (
	ErrNetwork      ErrorCode = "NETWORK_ERROR"
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit ErrorCode = "API_RATE_LIMIT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	// ErrTransform marks a single leaf whose provider call failed. Non-fatal.
	ErrTransform ErrorCode = "TRANSFORM_ERROR"
	// ErrStructure marks a document missing the shape a structural pass needs.
	ErrStructure ErrorCode = "STRUCTURE_ERROR"
	// ErrParse marks input bytes that are not JSON, even after repair.
	ErrParse ErrorCode = "PARSE_ERROR"
)

// AppError is the application error type
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
