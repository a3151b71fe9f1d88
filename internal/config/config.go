package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type StorageConfig struct {
	Backend  string `toml:"backend"` // "sqlite" or "memgraph"
	Path     string `toml:"path"`
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LLMConfig struct {
	Provider string `toml:"provider"` // "openai", "claude", "gemini", "ollama", "" disables
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type VerificationConfig struct {
	FastDeadlineMs    int      `toml:"fast_deadline_ms"`
	MediumTimeoutSec  int      `toml:"medium_timeout_sec"`
	QueueSize         int      `toml:"queue_size"`
	RequiredCallbacks []string `toml:"required_callbacks"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	Storage      StorageConfig      `toml:"storage"`
	LLM          LLMConfig          `toml:"llm"`
	Relations    map[string]bool    `toml:"relations"`
	Verification VerificationConfig `toml:"verification"`
	Server       ServerConfig       `toml:"server"`
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "data/loom.db",
			URI:     "bolt://localhost:7687",
		},
		Verification: VerificationConfig{
			FastDeadlineMs:   500,
			MediumTimeoutSec: 5,
			QueueSize:        64,
		},
		Server: ServerConfig{Port: "8080"},
	}
}

// Load reads TOML config from path, layered over defaults. A missing file is
// not an error; env overrides still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Storage.Backend, "LOOM_STORAGE_BACKEND")
	set(&c.Storage.Path, "LOOM_STORAGE_PATH")
	set(&c.Storage.URI, "MEMGRAPH_URI")
	set(&c.Storage.User, "MEMGRAPH_USER")
	set(&c.Storage.Password, "MEMGRAPH_PASSWORD")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.Server.Port, "PORT")

	if v := os.Getenv("LOOM_FAST_DEADLINE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Verification.FastDeadlineMs = ms
		}
	}
}
