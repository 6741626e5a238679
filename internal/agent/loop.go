package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func jsonUnmarshalLenient(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

const DefaultMaxIterations = 12

// defaultMemoryTools names the tools whose successful invocation triggers
// an automatic memory version commit, per the core memory auto-snapshot
// rule.
var defaultMemoryTools = map[string]bool{
	"memory_append":  true,
	"memory_replace": true,
	"memory_clear":   true,
	"memory_create":  true,
}

// LoopConfig configures an AgenticLoop. Zero value is usable; unset fields
// take their documented defaults.
type LoopConfig struct {
	MaxIterations int
	System        string
	MemoryTools   map[string]bool
	Logger        *slog.Logger
	// ContextBudgetChars bounds the total character length of the assembled
	// prompt (system message plus history). When exceeded, oldest
	// non-system transcript messages are dropped first; the current user
	// turn is never dropped. Zero disables truncation.
	ContextBudgetChars int
}

// DefaultContextBudgetChars is a conservative character budget used when a
// LoopConfig doesn't set one, sized to stay well under small local-model
// context windows.
const DefaultContextBudgetChars = 24000

// AgenticLoop runs the assemble/generate/parse/dispatch cycle for one turn
// at a time. It holds no conversation state itself — callers supply history
// and receive back the messages to append.
type AgenticLoop struct {
	provider Provider
	registry *Registry
	memory   Memory
	cfg      LoopConfig
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New builds a loop over the given provider, tool registry, and core
// memory.
func New(provider Provider, registry *Registry, memory Memory, cfg LoopConfig) *AgenticLoop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MemoryTools == nil {
		cfg.MemoryTools = defaultMemoryTools
	}
	if cfg.ContextBudgetChars <= 0 {
		cfg.ContextBudgetChars = DefaultContextBudgetChars
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AgenticLoop{
		provider: provider,
		registry: registry,
		memory:   memory,
		cfg:      cfg,
		logger:   logger.With("component", "agent_loop"),
		tracer:   otel.Tracer("lucerna/agent"),
	}
}

// Run executes one turn: it assembles a prompt from history plus the new
// user input, repeatedly generates and dispatches tool calls, and returns
// once the model calls the reserved "response" tool, produces plain text
// with no tool calls, or the step budget is exhausted.
func (l *AgenticLoop) Run(ctx context.Context, history []Message, userInput string) (*Turn, error) {
	if l.provider == nil {
		return nil, ErrNoProvider
	}

	ctx, span := l.tracer.Start(ctx, "agent.turn")
	defer span.End()

	transcript := append([]Message{}, history...)
	transcript = append(transcript, Message{Role: RoleUser, Content: userInput})

	var appended []Message
	appended = append(appended, Message{Role: RoleUser, Content: userInput})

	emptyStreak := 0

	for step := 0; step < l.cfg.MaxIterations; step++ {
		stepCtx, stepSpan := l.tracer.Start(ctx, "agent.step", trace.WithAttributes(attribute.Int("step", step)))

		prompt := l.assemble(transcript)
		result, err := l.provider.Generate(stepCtx, prompt, GenerateOptions{})
		if err != nil {
			stepSpan.End()
			return nil, newLoopError(PhaseGenerate, step, "provider generate failed", err)
		}

		calls, plain := ExtractToolCalls(result.Content)

		if len(calls) == 0 {
			stepSpan.End()
			if plain == "" {
				emptyStreak++
				if emptyStreak >= 2 {
					return &Turn{
						Reply:        "",
						Appended:     appended,
						Steps:        step + 1,
						TerminatedBy: TerminatedByError,
					}, nil
				}
				// Retry once: nudge the loop forward without growing the
				// transcript, matching the no-op retry-once rule.
				continue
			}
			assistantMsg := Message{Role: RoleAssistant, Content: plain}
			transcript = append(transcript, assistantMsg)
			appended = append(appended, assistantMsg)
			return &Turn{
				Reply:        plain,
				Appended:     appended,
				Steps:        step + 1,
				TerminatedBy: TerminatedByResponse,
			}, nil
		}
		emptyStreak = 0

		// Only record a narration message when the reply carried text
		// alongside its tool calls; a reply that is pure tool-call JSON
		// shouldn't leave an empty assistant message in the transcript.
		if plain != "" {
			narration := Message{Role: RoleAssistant, Content: plain}
			transcript = append(transcript, narration)
			appended = append(appended, narration)
		}

		// Dispatch left-to-right, in parse order. A "response" call is
		// terminal: it ends the turn immediately, but any tool calls that
		// preceded it in the same reply have already run and appended their
		// results first.
		for _, call := range calls {
			if call.Name == ResponseToolName {
				reply := extractReplyText(call)
				finalMsg := Message{Role: RoleAssistant, Content: reply}
				transcript = append(transcript, finalMsg)
				appended = append(appended, finalMsg)
				stepSpan.End()
				return &Turn{
					Reply:        reply,
					Appended:     appended,
					Steps:        step + 1,
					TerminatedBy: TerminatedByResponse,
				}, nil
			}
			toolMsg := l.dispatch(stepCtx, step, call)
			transcript = append(transcript, toolMsg)
			appended = append(appended, toolMsg)
		}

		stepSpan.End()
	}

	return &Turn{
		Reply:        "I've run out of steps for this turn without reaching a final answer.",
		Appended:     appended,
		Steps:        l.cfg.MaxIterations,
		TerminatedBy: TerminatedByStepBudget,
	}, nil
}

func (l *AgenticLoop) dispatch(ctx context.Context, step int, call ToolCall) Message {
	out, err := l.registry.Invoke(ctx, call.Name, call.Args)
	if err != nil {
		l.logger.Warn("tool invocation failed", "tool", call.Name, "step", step, "error", err)
		return Message{
			Role:       RoleTool,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    fmt.Sprintf("error: %s", err.Error()),
		}
	}

	if l.memory != nil && l.cfg.MemoryTools[call.Name] {
		if _, cerr := l.memory.Commit(fmt.Sprintf("Auto-snapshot after tool %s", call.Name)); cerr != nil {
			l.logger.Error("auto-commit after memory tool failed", "tool", call.Name, "error", cerr)
		}
	}

	return Message{
		Role:       RoleTool,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    out,
	}
}

func (l *AgenticLoop) assemble(transcript []Message) []Message {
	system := l.cfg.System
	if l.memory != nil {
		if compiled := l.memory.Compile(); compiled != "" {
			system = system + "\n\n" + compiled
		}
	}
	if catalog := l.toolCatalog(); catalog != "" {
		system = system + "\n\n" + catalog
	}

	history := l.truncateToBudget(transcript, len(system))

	out := make([]Message, 0, len(history)+1)
	out = append(out, Message{Role: RoleSystem, Content: system})
	out = append(out, history...)
	return out
}

// truncateToBudget drops the oldest non-system messages until the remaining
// history fits within the configured character budget alongside the
// systemLen-character system message. The current user turn (the last user
// message) and everything after it are always kept, even if they alone
// exceed the budget.
func (l *AgenticLoop) truncateToBudget(transcript []Message, systemLen int) []Message {
	budget := l.cfg.ContextBudgetChars
	if budget <= 0 || len(transcript) == 0 {
		return transcript
	}

	total := systemLen
	for _, m := range transcript {
		total += len(m.Content)
	}
	if total <= budget {
		return transcript
	}

	keep := len(transcript) - 1
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == RoleUser {
			keep = i
			break
		}
	}

	start := 0
	for start < keep && total > budget {
		total -= len(transcript[start].Content)
		start++
	}
	return transcript[start:]
}

// toolProtocolPreamble states the tool-invocation grammar every turn relies
// on: how to call a tool, and how to call the reserved "response" tool to
// end the turn. This is baked into the system message unconditionally so a
// model that never sees operator-configured guidance still knows how to
// terminate a turn.
const toolProtocolPreamble = `To take an action, reply with one JSON object per invocation: {"tool_name": "<name>", "tool_args": {...}}. You may emit more than one such object in a single reply; they run in the order you wrote them.

When you are ready to give your final answer for this turn, call the reserved "response" tool: {"tool_name": "response", "tool_args": {"message": "<your reply text>"}}. This ends the turn immediately — any tool calls before it in the same reply still run first, but nothing after it does.`

func (l *AgenticLoop) toolCatalog() string {
	var sb strings.Builder
	sb.WriteString(toolProtocolPreamble)
	sb.WriteString("\n\nAvailable tools:\n")
	sb.WriteString(fmt.Sprintf("- %s: ends the turn; tool_args is {\"message\": string}\n", ResponseToolName))

	if l.registry != nil {
		schemas := l.registry.Schemas()
		names := make([]string, 0, len(schemas))
		for name := range schemas {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("- %s: %v\n", name, schemas[name]))
		}
	}
	return sb.String()
}

func extractReplyText(call ToolCall) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := jsonUnmarshalLenient(call.Args, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(call.Args)
}
