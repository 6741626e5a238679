// Package config loads the application's YAML configuration file, the one
// piece of durable state that isn't a plain JSON blob — matching how the
// rest of the ambient stack treats config as distinct from persisted
// runtime state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	BaseDir  string         `yaml:"base_dir"`
	Loop     LoopConfig     `yaml:"loop"`
	Memory   MemoryConfig   `yaml:"memory"`
	MCP      MCPConfig      `yaml:"mcp"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Groq     OpenAIConfig   `yaml:"groq"`
	LlamaServer OpenAIConfig `yaml:"llama_server"`
	OpenRouter  OpenAIConfig `yaml:"openrouter"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
}

type LoopConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	System        string `yaml:"system"`
}

type MemoryConfig struct {
	AgentID string `yaml:"agent_id"`
}

type MCPConfig struct {
	ServersFile string `yaml:"servers_file"`
}

type OllamaConfig struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

type OpenAIConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	HealthURL    string `yaml:"health_url"`
}

type AnthropicConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

type GeminiConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

type BedrockConfig struct {
	ModelID string `yaml:"model_id"`
	Region  string `yaml:"region"`
}

// Default returns a Config with sane defaults for running entirely
// against a local Ollama instance.
func Default() Config {
	return Config{
		BaseDir: "~/.lucerna",
		Loop:    LoopConfig{MaxIterations: 12},
		Memory:  MemoryConfig{AgentID: "default"},
		MCP:     MCPConfig{ServersFile: "mcp_servers.json"},
		Ollama:  OllamaConfig{BaseURL: "http://localhost:11434"},
	}
}

// Load reads and parses a YAML config file at path, applying Default()
// first so unset fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
