// Package config loads server configuration from defaults, an optional
// YAML file, and RISKLINE_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Index    IndexConfig    `yaml:"index"`
	Storage  StorageConfig  `yaml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

type ServerConfig struct {
	Port    int    `yaml:"port"`
	MCPPort int    `yaml:"mcp_port"`
	Token   string `yaml:"token"`
}

type OllamaConfig struct {
	BaseURL    string `yaml:"base_url"`
	GenModel   string `yaml:"gen_model"`
	EmbedModel string `yaml:"embed_model"`
}

// IndexConfig selects the vector index backend: "sqlite" keeps everything
// local, "remote" talks to an OpenSearch-style cluster.
type IndexConfig struct {
	Backend        string `yaml:"backend"`
	RemoteURL      string `yaml:"remote_url"`
	IndexName      string `yaml:"index_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type AnalysisConfig struct {
	DefaultProfile string `yaml:"default_profile"`
	DefaultTopK    int    `yaml:"default_top_k"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4100,
			MCPPort: 4101,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			GenModel:   "mistral-nemo",
			EmbedModel: "nomic-embed-text",
		},
		Index: IndexConfig{
			Backend:        "sqlite",
			IndexName:      "riskline-chunks",
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Analysis: AnalysisConfig{
			DefaultProfile: "fast",
			DefaultTopK:    4,
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "riskline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "riskline-data"
	}
	return filepath.Join(home, ".local", "share", "riskline")
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. RISKLINE_* environment variables
// override file values.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Token == "" {
		return Config{}, fmt.Errorf("missing required config: API token; set server.token or RISKLINE_TOKEN")
	}
	if cfg.Index.Backend == "remote" && cfg.Index.RemoteURL == "" {
		return Config{}, fmt.Errorf("index backend %q requires index.remote_url or RISKLINE_INDEX_URL", cfg.Index.Backend)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("RISKLINE_PORT", &cfg.Server.Port)
	setInt("RISKLINE_MCP_PORT", &cfg.Server.MCPPort)
	setString("RISKLINE_TOKEN", &cfg.Server.Token)
	setString("RISKLINE_OLLAMA_URL", &cfg.Ollama.BaseURL)
	setString("RISKLINE_GEN_MODEL", &cfg.Ollama.GenModel)
	setString("RISKLINE_EMBED_MODEL", &cfg.Ollama.EmbedModel)
	setString("RISKLINE_INDEX_BACKEND", &cfg.Index.Backend)
	setString("RISKLINE_INDEX_URL", &cfg.Index.RemoteURL)
	setString("RISKLINE_INDEX_NAME", &cfg.Index.IndexName)
	setInt("RISKLINE_INDEX_TIMEOUT", &cfg.Index.TimeoutSeconds)
	setString("RISKLINE_DATA_DIR", &cfg.Storage.DataDir)
	setString("RISKLINE_PROFILE", &cfg.Analysis.DefaultProfile)
	setInt("RISKLINE_TOP_K", &cfg.Analysis.DefaultTopK)
}
