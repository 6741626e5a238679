package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// Backend is one concrete model provider: Ollama, llama-server, or a cloud
// API. Probe is a cheap, fast reachability check used only during
// auto-detection; Generate does the real work.
type Backend interface {
	Name() string
	Probe(ctx context.Context) bool
	Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (agent.GenerateResult, error)
}

// Router implements agent.Provider by auto-detecting the first reachable
// backend in probing order (Ollama -> llama-server -> configured cloud
// providers), or dispatching directly to a backend pinned by name via
// GenerateOptions.Model of the form "backend:model".
type Router struct {
	probeOrder []Backend
	named      map[string]Backend
	logger     *slog.Logger

	tokensTotal *prometheus.CounterVec
	genDuration *prometheus.HistogramVec
}

var _ agent.Provider = (*Router)(nil)

// NewRouter builds a router. probeOrder is tried, in order, during
// auto-detection; every backend is also addressable by name.
func NewRouter(logger *slog.Logger, probeOrder ...Backend) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	named := make(map[string]Backend, len(probeOrder))
	for _, b := range probeOrder {
		named[b.Name()] = b
	}
	return &Router{
		probeOrder: probeOrder,
		named:      named,
		logger:     logger.With("component", "provider_router"),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lucerna_router_tokens_total",
			Help: "Tokens consumed by the provider router, by backend and kind.",
		}, []string{"backend", "kind"}),
		genDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "lucerna_router_generate_seconds",
			Help: "Latency of Router.Generate calls, by backend.",
		}, []string{"backend"}),
	}
}

// Collectors exposes the router's Prometheus metrics for registration.
func (r *Router) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.tokensTotal, r.genDuration}
}

// Generate dispatches to an explicit backend (when opts.Model carries a
// "backend:model" prefix matching a configured backend) or to the first
// backend that probes reachable, in probing order. A single
// GenerationFailedError is returned on any failure; there are no retries.
func (r *Router) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (agent.GenerateResult, error) {
	backend, innerOpts, err := r.resolve(ctx, opts)
	if err != nil {
		return agent.GenerateResult{}, err
	}

	start := time.Now()
	result, err := backend.Generate(ctx, messages, innerOpts)
	r.genDuration.WithLabelValues(backend.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return agent.GenerateResult{}, generationFailed(backend.Name(), err)
	}

	r.tokensTotal.WithLabelValues(backend.Name(), "prompt").Add(float64(result.PromptTokens))
	r.tokensTotal.WithLabelValues(backend.Name(), "completion").Add(float64(result.CompletionTokens))
	return result, nil
}

func (r *Router) resolve(ctx context.Context, opts agent.GenerateOptions) (Backend, agent.GenerateOptions, error) {
	if opts.Model != "" {
		if name, model, ok := strings.Cut(opts.Model, ":"); ok {
			if b, exists := r.named[name]; exists {
				opts.Model = model
				return b, opts, nil
			}
		}
	}

	for _, b := range r.probeOrder {
		if b.Probe(ctx) {
			r.logger.Debug("auto-detected backend", "backend", b.Name())
			return b, opts, nil
		}
	}

	return nil, opts, &GenerationFailedError{Reason: "no provider backend is reachable: start Ollama (ollama serve), start llama-server, or configure an API key for a cloud provider (Anthropic, OpenAI, Groq)"}
}

// errUnreachable is a convenience sentinel backends can wrap into Probe
// failures for logging.
var errUnreachable = fmt.Errorf("backend unreachable")
