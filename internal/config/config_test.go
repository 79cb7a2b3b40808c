package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"story-localizer/internal/types"
)

func TestNewConfigManager(t *testing.T) {
	t.Run("with custom path", func(t *testing.T) {
		customPath := "/tmp/test-config.yaml"
		cm, err := NewConfigManager(customPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if cm.GetConfigPath() != customPath {
			t.Errorf("expected config path %s, got %s", customPath, cm.GetConfigPath())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		cm, err := NewConfigManager("")
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if filepath.Base(cm.GetConfigPath()) != DefaultConfigFileName {
			t.Errorf("expected default file name, got %s", cm.GetConfigPath())
		}
	})
}

func TestConfigManager_LoadSave(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"storyctl.yaml", "storyctl.json"} {
		configPath := filepath.Join(tmpDir, name)

		t.Run(name+" load with non-existent file uses defaults", func(t *testing.T) {
			cm, err := NewConfigManager(configPath)
			if err != nil {
				t.Fatalf("NewConfigManager failed: %v", err)
			}
			if err := cm.Load(); err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			config := cm.GetConfig()
			if config.OpenAIModel != DefaultModel {
				t.Errorf("expected default model %s, got %s", DefaultModel, config.OpenAIModel)
			}
			if config.CharLimit != DefaultCharLimit {
				t.Errorf("expected char limit %d, got %d", DefaultCharLimit, config.CharLimit)
			}
			if !reflect.DeepEqual(config.SkipTexts, DefaultSkipTexts) {
				t.Errorf("expected default skip texts, got %v", config.SkipTexts)
			}
		})

		t.Run(name+" save then load", func(t *testing.T) {
			cm, err := NewConfigManager(configPath)
			if err != nil {
				t.Fatalf("NewConfigManager failed: %v", err)
			}
			cm.SetConfig(&types.Config{
				OpenAIAPIKey:   "test-api-key",
				OpenAIModel:    "gpt-4o-mini",
				TargetLanguage: "de",
				SkipTexts:      []string{"Weiter"},
				Block:          "covarnius",
				CharLimit:      430,
			})
			if err := cm.Save(); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			info, err := os.Stat(configPath)
			if err != nil {
				t.Fatalf("config file was not created: %v", err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
			}

			loaded, _ := NewConfigManager(configPath)
			if err := loaded.Load(); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			config := loaded.GetConfig()
			if config.OpenAIAPIKey != "test-api-key" {
				t.Errorf("expected API key 'test-api-key', got '%s'", config.OpenAIAPIKey)
			}
			if config.OpenAIModel != "gpt-4o-mini" {
				t.Errorf("expected model 'gpt-4o-mini', got '%s'", config.OpenAIModel)
			}
			if config.Block != "covarnius" || config.CharLimit != 430 {
				t.Errorf("unexpected block/limit %q/%d", config.Block, config.CharLimit)
			}
			if !reflect.DeepEqual(config.SkipTexts, []string{"Weiter"}) {
				t.Errorf("expected skip texts [Weiter], got %v", config.SkipTexts)
			}
			// Empty fields fall back to defaults
			if config.Concurrency != DefaultConcurrency {
				t.Errorf("expected default concurrency, got %d", config.Concurrency)
			}
		})
	}

	t.Run("load with invalid file uses defaults", func(t *testing.T) {
		invalidConfigPath := filepath.Join(tmpDir, "invalid.yaml")
		if err := os.WriteFile(invalidConfigPath, []byte("target_language: [unterminated"), 0644); err != nil {
			t.Fatalf("failed to write invalid config: %v", err)
		}

		cm, _ := NewConfigManager(invalidConfigPath)
		if err := cm.Load(); err != nil {
			t.Fatalf("Load should not fail with an invalid file: %v", err)
		}
		if cm.GetConfig().TargetLanguage != DefaultTargetLanguage {
			t.Errorf("expected default target after invalid file, got %s", cm.GetConfig().TargetLanguage)
		}
	})

	t.Run("yaml file written by hand", func(t *testing.T) {
		path := filepath.Join(tmpDir, "hand.yml")
		content := "target_language: is\nskip_texts:\n  - Áfram\nconcurrency: 8\ntemperature: 0.2\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cm, _ := NewConfigManager(path)
		if err := cm.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		config := cm.GetConfig()
		if config.TargetLanguage != "is" || config.Concurrency != 8 || config.Temperature != 0.2 {
			t.Errorf("unexpected config %+v", config)
		}
		if !reflect.DeepEqual(config.SkipTexts, []string{"Áfram"}) {
			t.Errorf("unexpected skip texts %v", config.SkipTexts)
		}
	})
}

func TestConfigManager_GetAPIKey(t *testing.T) {
	cm, _ := NewConfigManager(filepath.Join(t.TempDir(), "c.yaml"))

	t.Run("falls back to environment", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "env-key")
		if got := cm.GetAPIKey(); got != "env-key" {
			t.Errorf("expected env-key, got %s", got)
		}
	})

	t.Run("config value wins", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "env-key")
		cm.Merge(&types.Config{OpenAIAPIKey: "file-key"})
		if got := cm.GetAPIKey(); got != "file-key" {
			t.Errorf("expected file-key, got %s", got)
		}
	})
}

func TestConfigManager_GetBaseURL(t *testing.T) {
	cm, _ := NewConfigManager(filepath.Join(t.TempDir(), "c.yaml"))

	t.Setenv(EnvOpenAIBaseURL, "")
	if got := cm.GetBaseURL(); got != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", got)
	}

	t.Setenv(EnvOpenAIBaseURL, "https://proxy.example/v1")
	if got := cm.GetBaseURL(); got != "https://proxy.example/v1" {
		t.Errorf("expected env base URL, got %s", got)
	}

	cm.Merge(&types.Config{OpenAIBaseURL: "https://local/v1"})
	if got := cm.GetBaseURL(); got != "https://local/v1" {
		t.Errorf("expected configured base URL, got %s", got)
	}
}

func TestConfigManager_EnvOverrides(t *testing.T) {
	t.Setenv(EnvTargetLanguage, "fr")
	t.Setenv(EnvOpenAIModel, "gpt-4o")

	cm, _ := NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	if err := cm.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// The default config already names a model, so only the target changes.
	if got := cm.GetConfig().TargetLanguage; got != "fr" {
		t.Errorf("expected target fr, got %s", got)
	}
}

func TestConfigManager_ModelFromEnvWhenFileOmitsIt(t *testing.T) {
	t.Setenv(EnvOpenAIModel, "gpt-4o")
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("target_language: de\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cm, _ := NewConfigManager(path)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cm.GetModel(); got != "gpt-4o" {
		t.Errorf("expected model from env, got %s", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STORYCTL_TEST_VALUE=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORYCTL_TEST_VALUE", "")
	os.Unsetenv("STORYCTL_TEST_VALUE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv("STORYCTL_TEST_VALUE"); got != "from-dotenv" {
		t.Errorf("expected from-dotenv, got %q", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing env file should not fail: %v", err)
	}
}

func TestConfigManager_Merge(t *testing.T) {
	cm, _ := NewConfigManager(filepath.Join(t.TempDir(), "c.yaml"))

	cm.Merge(&types.Config{TargetLanguage: "es", Concurrency: 5, SkipTexts: []string{}})
	cm.Merge(nil)

	config := cm.GetConfig()
	if config.TargetLanguage != "es" || config.Concurrency != 5 {
		t.Errorf("merge not applied: %+v", config)
	}
	if len(config.SkipTexts) != 0 {
		t.Errorf("explicit empty skip list should be kept, got %v", config.SkipTexts)
	}
	if config.OpenAIModel != DefaultModel {
		t.Errorf("untouched fields should keep defaults, got %s", config.OpenAIModel)
	}
}

func TestConfigManager_GettersWithDefaults(t *testing.T) {
	cm := &ConfigManager{}

	if cm.GetModel() != DefaultModel {
		t.Errorf("expected default model, got %s", cm.GetModel())
	}
	if cm.GetConcurrency() != DefaultConcurrency {
		t.Errorf("expected default concurrency, got %d", cm.GetConcurrency())
	}
	if cm.GetCharLimit() != DefaultCharLimit {
		t.Errorf("expected default char limit, got %d", cm.GetCharLimit())
	}
	if cm.GetTimeout() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cm.GetTimeout())
	}
	if !reflect.DeepEqual(cm.GetSkipTexts(), DefaultSkipTexts) {
		t.Errorf("expected default skip texts, got %v", cm.GetSkipTexts())
	}
	if cm.GetConfig() == nil {
		t.Error("GetConfig should never return nil")
	}
}

func TestConfigManager_SaveCreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "storyctl.yaml")
	cm, _ := NewConfigManager(configPath)

	if err := cm.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config file was not created: %v", err)
	}
}
