package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lucerna-ai/lucerna/internal/agent"
	"github.com/lucerna-ai/lucerna/internal/config"
	"github.com/lucerna-ai/lucerna/internal/mcp"
	"github.com/lucerna-ai/lucerna/internal/memory"
	"github.com/lucerna-ai/lucerna/internal/observability"
	"github.com/lucerna-ai/lucerna/internal/persistence"
	"github.com/lucerna-ai/lucerna/internal/providers"
	"github.com/lucerna-ai/lucerna/internal/tools/delegate"
	"github.com/lucerna-ai/lucerna/internal/tools/fetch"
	"github.com/lucerna-ai/lucerna/internal/tools/fs"
	memorytool "github.com/lucerna-ai/lucerna/internal/tools/memory"
	"github.com/lucerna-ai/lucerna/internal/tools/shell"
)

// runtime bundles every wired component a CLI command might need.
type runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	layout     persistence.Layout
	registry   *agent.Registry
	memory     *memory.CoreMemory
	blockStore *persistence.FileBlockStore
	bridge     *mcp.Bridge
	router     *providers.Router
	loop       *agent.AgenticLoop
	sessions   *persistence.SessionStore
	tracerDone func(context.Context) error
}

// Close flushes any debounced core memory writes, tears down the MCP
// bridge's connections, and shuts down the in-process tracer provider, per
// the persistence flush() contract that guarantees pending writes land
// before shutdown.
func (rt *runtime) Close() error {
	if rt.blockStore != nil {
		if err := rt.blockStore.Flush(rt.cfg.Memory.AgentID); err != nil {
			rt.logger.Error("flush core memory on shutdown failed", "error", err)
		}
	}
	if rt.tracerDone != nil {
		if err := rt.tracerDone(context.Background()); err != nil {
			rt.logger.Error("shut down tracer provider failed", "error", err)
		}
	}
	if rt.bridge != nil {
		return rt.bridge.Close()
	}
	return nil
}

func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tracerDone := observability.InstallTracing(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("using defaults, could not load config", "path", configPath, "error", err)
		cfg = config.Default()
	}

	layout := persistence.Layout{BaseDir: expandHome(cfg.BaseDir)}

	blockStore := persistence.NewFileBlockStore(layout, logger)
	versionStore := persistence.NewFileVersionStore(layout, logger)
	sessions := persistence.NewSessionStore(layout, logger)

	mem, err := memory.New(cfg.Memory.AgentID, blockStore, versionStore, logger)
	if err != nil {
		return nil, fmt.Errorf("init core memory: %w", err)
	}

	registry := agent.NewRegistry(logger)
	if err := registry.Register(&fs.Tool{Root: layout.BaseDir}); err != nil {
		return nil, err
	}
	if err := registry.Register(&shell.Tool{}); err != nil {
		return nil, err
	}
	if err := registry.Register(&fetch.Tool{}); err != nil {
		return nil, err
	}
	if err := memorytool.Register(registry, mem); err != nil {
		return nil, fmt.Errorf("register memory tools: %w", err)
	}

	bridge, err := mcp.NewBridge(registry, layout.MCPServersFile(cfg.MCP.ServersFile), logger)
	if err != nil {
		return nil, fmt.Errorf("init mcp bridge: %w", err)
	}

	router := buildRouter(ctx, cfg, logger)
	if err := registry.Register(&delegate.Tool{Provider: router, Registry: registry, ParentMemory: mem, Logger: logger}); err != nil {
		return nil, fmt.Errorf("register delegate tool: %w", err)
	}

	loop := agent.New(router, registry, mem, agent.LoopConfig{
		MaxIterations: cfg.Loop.MaxIterations,
		System:        cfg.Loop.System,
		Logger:        logger,
	})

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		layout:     layout,
		registry:   registry,
		memory:     mem,
		blockStore: blockStore,
		bridge:     bridge,
		router:     router,
		loop:       loop,
		sessions:   sessions,
		tracerDone: tracerDone,
	}, nil
}

func buildRouter(ctx context.Context, cfg config.Config, logger *slog.Logger) *providers.Router {
	ollama := providers.NewOllamaBackend(providers.OllamaConfig{
		BaseURL:      cfg.Ollama.BaseURL,
		DefaultModel: cfg.Ollama.DefaultModel,
	})
	llamaServer := providers.NewOpenAICompatibleBackend(providers.OpenAICompatibleConfig{
		BackendName:  "llama-server",
		BaseURL:      cfg.LlamaServer.BaseURL,
		DefaultModel: cfg.LlamaServer.DefaultModel,
		HealthURL:    cfg.LlamaServer.HealthURL,
	})

	backends := []providers.Backend{ollama, llamaServer}

	if key := orEnv(cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY"); key != "" {
		backends = append(backends, providers.NewAnthropicBackend(providers.AnthropicConfig{
			APIKey: key, DefaultModel: cfg.Anthropic.DefaultModel,
		}))
	}
	if key := orEnv(cfg.OpenAI.APIKey, "OPENAI_API_KEY"); key != "" {
		backends = append(backends, providers.NewOpenAICompatibleBackend(providers.OpenAICompatibleConfig{
			BackendName: "openai", APIKey: key, BaseURL: cfg.OpenAI.BaseURL, DefaultModel: cfg.OpenAI.DefaultModel,
		}))
	}
	if key := orEnv(cfg.Groq.APIKey, "GROQ_API_KEY"); key != "" {
		backends = append(backends, providers.NewOpenAICompatibleBackend(providers.OpenAICompatibleConfig{
			BackendName: "groq", APIKey: key, BaseURL: orDefault(cfg.Groq.BaseURL, "https://api.groq.com/openai/v1"), DefaultModel: cfg.Groq.DefaultModel,
		}))
	}
	if key := orEnv(cfg.OpenRouter.APIKey, "OPENROUTER_API_KEY"); key != "" {
		backends = append(backends, providers.NewOpenAICompatibleBackend(providers.OpenAICompatibleConfig{
			BackendName: "openrouter", APIKey: key, BaseURL: orDefault(cfg.OpenRouter.BaseURL, "https://openrouter.ai/api/v1"), DefaultModel: cfg.OpenRouter.DefaultModel,
		}))
	}
	if key := orEnv(cfg.Gemini.APIKey, "GEMINI_API_KEY"); key != "" {
		if gemini, err := providers.NewGeminiBackend(ctx, providers.GeminiConfig{APIKey: key, DefaultModel: cfg.Gemini.DefaultModel}); err == nil {
			backends = append(backends, gemini)
		} else {
			logger.Warn("gemini backend unavailable", "error", err)
		}
	}
	if cfg.Bedrock.ModelID != "" {
		if bedrock, err := providers.NewBedrockBackend(ctx, providers.BedrockConfig{ModelID: cfg.Bedrock.ModelID, Region: cfg.Bedrock.Region}); err == nil {
			backends = append(backends, bedrock)
		} else {
			logger.Warn("bedrock backend unavailable", "error", err)
		}
	}

	return providers.NewRouter(logger, backends...)
}

func orEnv(configured, envVar string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv(envVar)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}
