// Package config provides configuration management for the story localizer.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"story-localizer/internal/logger"
	"story-localizer/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "storyctl.yaml"
	// EnvOpenAIAPIKey is the environment variable name for OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvOpenAIModel is the environment variable name for the polishing model
	EnvOpenAIModel = "OPENAI_MODEL"
	// EnvTargetLanguage overrides the configured target language
	EnvTargetLanguage = "STORYCTL_TARGET_LANGUAGE"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default OpenAI model to use
	DefaultModel = "gpt-4"
	// DefaultTemperature is the polishing temperature
	DefaultTemperature = 0.7
	// DefaultTargetLanguage is the translation target
	DefaultTargetLanguage = "ja"
	// DefaultSourceLanguage lets the provider detect the source
	DefaultSourceLanguage = "auto"
	// DefaultTranslateBaseURL is the public Google translate endpoint
	DefaultTranslateBaseURL = "https://translate.googleapis.com"
	// DefaultTextKey is the reserved key holding localizable text
	DefaultTextKey = "text"
	// DefaultStoryKey is the reserved key holding the page sequence
	DefaultStoryKey = "story"
	// DefaultCharLimit is the page length limit used by the audit
	DefaultCharLimit = 450
	// DefaultConcurrency is the number of provider calls in flight
	DefaultConcurrency = 3
	// DefaultTimeoutSeconds bounds one provider call
	DefaultTimeoutSeconds = 60
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3
)

// DefaultSkipTexts are the canonical navigation strings that are never
// translated or polished.
var DefaultSkipTexts = []string{"次へ", "Continue", "続く"}

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
// Files ending in .json are read as JSON, everything else as YAML.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "story-localizer", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

// defaultConfig returns a Config with default values
func defaultConfig() *types.Config {
	return &types.Config{
		OpenAIBaseURL:    DefaultBaseURL,
		OpenAIModel:      DefaultModel,
		Temperature:      DefaultTemperature,
		SourceLanguage:   DefaultSourceLanguage,
		TargetLanguage:   DefaultTargetLanguage,
		TranslateBaseURL: DefaultTranslateBaseURL,
		SkipTexts:        append([]string(nil), DefaultSkipTexts...),
		TextKey:          DefaultTextKey,
		StoryKey:         DefaultStoryKey,
		CharLimit:        DefaultCharLimit,
		Concurrency:      DefaultConcurrency,
		TimeoutSeconds:   DefaultTimeoutSeconds,
		MaxRetries:       DefaultMaxRetries,
	}
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// LoadEnvFile loads variables from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		logger.Error("failed to load env file", err, logger.String("path", path))
		return types.NewAppError(types.ErrConfig, "failed to load env file "+path, err)
	}
	logger.Debug("env file loaded", logger.String("path", path))
	return nil
}

// Load loads configuration from the config file.
// If the file doesn't exist, it uses default values.
// Environment variables take precedence for API key if config file value is empty.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		config := &types.Config{}
		if isJSON(m.configPath) {
			err = json.Unmarshal(data, config)
		} else {
			err = yaml.Unmarshal(data, config)
		}
		if err != nil {
			// Invalid file, use defaults
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded successfully",
				logger.String("path", m.configPath),
				logger.Int("apiKeyLength", len(config.OpenAIAPIKey)),
				logger.String("model", config.OpenAIModel),
				logger.String("targetLanguage", config.TargetLanguage))
			m.config = config
		}
	}

	m.applyEnv()
	applyDefaults(m.config)
	return nil
}

// applyEnv fills empty fields from the environment.
func (m *ConfigManager) applyEnv() {
	if m.config.OpenAIModel == "" {
		m.config.OpenAIModel = os.Getenv(EnvOpenAIModel)
	}
	if v := os.Getenv(EnvTargetLanguage); v != "" {
		m.config.TargetLanguage = v
	}
}

// applyDefaults fills empty fields with default values
func applyDefaults(c *types.Config) {
	d := defaultConfig()
	if c.OpenAIModel == "" {
		c.OpenAIModel = d.OpenAIModel
	}
	if c.Temperature == 0 {
		c.Temperature = d.Temperature
	}
	if c.SourceLanguage == "" {
		c.SourceLanguage = d.SourceLanguage
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = d.TargetLanguage
	}
	if c.TranslateBaseURL == "" {
		c.TranslateBaseURL = d.TranslateBaseURL
	}
	if c.SkipTexts == nil {
		c.SkipTexts = d.SkipTexts
	}
	if c.TextKey == "" {
		c.TextKey = d.TextKey
	}
	if c.StoryKey == "" {
		c.StoryKey = d.StoryKey
	}
	if c.CharLimit == 0 {
		c.CharLimit = d.CharLimit
	}
	if c.Concurrency == 0 {
		c.Concurrency = d.Concurrency
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = d.TimeoutSeconds
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	var (
		data []byte
		err  error
	)
	if isJSON(m.configPath) {
		data, err = json.MarshalIndent(m.config, "", "  ")
	} else {
		data, err = yaml.Marshal(m.config)
	}
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	// The file may hold an API key
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// Merge copies every non-zero field of override into the configuration.
// Command-line flags are applied this way.
func (m *ConfigManager) Merge(override *types.Config) {
	if override == nil {
		return
	}
	if m.config == nil {
		m.config = defaultConfig()
	}
	c := m.config

	if override.OpenAIAPIKey != "" {
		c.OpenAIAPIKey = override.OpenAIAPIKey
	}
	if override.OpenAIBaseURL != "" {
		c.OpenAIBaseURL = override.OpenAIBaseURL
	}
	if override.OpenAIModel != "" {
		c.OpenAIModel = override.OpenAIModel
	}
	if override.Temperature > 0 {
		c.Temperature = override.Temperature
	}
	if override.SourceLanguage != "" {
		c.SourceLanguage = override.SourceLanguage
	}
	if override.TargetLanguage != "" {
		c.TargetLanguage = override.TargetLanguage
	}
	if override.TranslateBaseURL != "" {
		c.TranslateBaseURL = override.TranslateBaseURL
	}
	if override.CacheFile != "" {
		c.CacheFile = override.CacheFile
	}
	if override.SkipTexts != nil {
		c.SkipTexts = override.SkipTexts
	}
	if override.TextKey != "" {
		c.TextKey = override.TextKey
	}
	if override.StoryKey != "" {
		c.StoryKey = override.StoryKey
	}
	if override.Block != "" {
		c.Block = override.Block
	}
	if override.CharLimit > 0 {
		c.CharLimit = override.CharLimit
	}
	if override.Concurrency > 0 {
		c.Concurrency = override.Concurrency
	}
	if override.TimeoutSeconds > 0 {
		c.TimeoutSeconds = override.TimeoutSeconds
	}
	if override.MaxRetries > 0 {
		c.MaxRetries = override.MaxRetries
	}
}

// GetAPIKey returns the OpenAI API key.
// It first checks the config file value, then falls back to the environment variable.
func (m *ConfigManager) GetAPIKey() string {
	if m.config != nil && m.config.OpenAIAPIKey != "" {
		return m.config.OpenAIAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// GetBaseURL returns the OpenAI API base URL.
// An explicitly configured URL wins over the environment; the default
// comes last.
func (m *ConfigManager) GetBaseURL() string {
	if m.config != nil && m.config.OpenAIBaseURL != "" && m.config.OpenAIBaseURL != DefaultBaseURL {
		return m.config.OpenAIBaseURL
	}
	if envURL := os.Getenv(EnvOpenAIBaseURL); envURL != "" {
		return envURL
	}
	return DefaultBaseURL
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetModel returns the OpenAI model to use.
func (m *ConfigManager) GetModel() string {
	if m.config != nil && m.config.OpenAIModel != "" {
		return m.config.OpenAIModel
	}
	return DefaultModel
}

// GetConcurrency returns the number of provider calls allowed in flight.
func (m *ConfigManager) GetConcurrency() int {
	if m.config != nil && m.config.Concurrency > 0 {
		return m.config.Concurrency
	}
	return DefaultConcurrency
}

// GetCharLimit returns the page length limit.
func (m *ConfigManager) GetCharLimit() int {
	if m.config != nil && m.config.CharLimit > 0 {
		return m.config.CharLimit
	}
	return DefaultCharLimit
}

// GetTimeout returns the per-call provider timeout.
func (m *ConfigManager) GetTimeout() time.Duration {
	if m.config != nil && m.config.TimeoutSeconds > 0 {
		return time.Duration(m.config.TimeoutSeconds) * time.Second
	}
	return DefaultTimeoutSeconds * time.Second
}

// GetSkipTexts returns the texts never sent to a provider.
func (m *ConfigManager) GetSkipTexts() []string {
	if m.config != nil && m.config.SkipTexts != nil {
		return m.config.SkipTexts
	}
	return append([]string(nil), DefaultSkipTexts...)
}
