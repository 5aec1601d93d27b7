package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/tracer"
)

// Admitter gates requests per user before any model or tool work happens.
type Admitter interface {
	Admit(userID string) bool
}

// CommandInput is one natural-language canvas command.
type CommandInput struct {
	Messages      []domain.Message
	CanvasContext *CanvasContext
	CanvasID      string
}

// CommandResult is the outcome of one command turn.
type CommandResult struct {
	Message       string
	ToolsExecuted int
	TokenUsage    int
	OperationID   string
}

// OrchestratorDeps holds injected dependencies for the orchestrator.
type OrchestratorDeps struct {
	LLM     domain.LLMProvider
	Tools   domain.ToolExecutor
	Tracker *Tracker
	Limiter Admitter
	Logger  *slog.Logger

	// MaxTokens and Temperature are forwarded to the provider on both
	// model calls.
	MaxTokens   int
	Temperature float64
}

// Orchestrator drives the two-pass command protocol: the model proposes
// tool calls, the calls run sequentially, and a second model pass with the
// results produces the user-facing summary.
type Orchestrator struct {
	deps OrchestratorDeps
}

// NewOrchestrator creates an orchestrator with the given dependencies.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Execute processes one command on behalf of the user in ctx.
func (o *Orchestrator) Execute(ctx context.Context, input CommandInput) (*CommandResult, error) {
	userID := domain.UserIDFromContext(ctx)
	if userID == "" {
		return nil, domain.NewDomainError("Orchestrator.Execute", domain.ErrAuthInvalid, "no user identity")
	}
	if len(input.Messages) == 0 {
		return nil, domain.NewDomainError("Orchestrator.Execute", domain.ErrInvalidInput, "messages must not be empty")
	}

	canvasID := input.CanvasID
	if canvasID == "" {
		canvasID = domain.DefaultCanvasID
	}
	ctx = domain.ContextWithCanvasID(ctx, canvasID)

	ctx, span := tracer.StartSpan(ctx, "orchestrator.execute",
		trace.WithAttributes(
			tracer.StringAttr("canvas.id", canvasID),
			tracer.IntAttr("messages.count", len(input.Messages)),
		),
	)
	defer span.End()

	if !o.deps.Limiter.Admit(userID) {
		err := domain.NewDomainError("Orchestrator.Execute", domain.ErrRateLimit, userID)
		tracer.RecordError(span, err)
		return nil, err
	}

	// First pass: the model sees the full tool set and may propose calls.
	conversation := make([]domain.Message, 0, len(input.Messages)+2)
	conversation = append(conversation, domain.Message{
		Role:      domain.RoleSystem,
		Content:   buildSystemPrompt(input.CanvasContext),
		Timestamp: time.Now(),
	})
	conversation = append(conversation, input.Messages...)

	var usage domain.Usage
	proposal, err := o.deps.LLM.Chat(ctx, domain.ChatRequest{
		Messages:    conversation,
		Tools:       o.deps.Tools.Schemas(),
		MaxTokens:   o.deps.MaxTokens,
		Temperature: o.deps.Temperature,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("model proposal: %w", err)
	}
	usage.Add(proposal.Usage)

	// No tool calls: the model's reply is the whole answer.
	if len(proposal.Message.ToolCalls) == 0 {
		tracer.SetOK(span)
		return &CommandResult{
			Message:    proposal.Message.Content,
			TokenUsage: usage.TotalTokens,
		}, nil
	}

	// Execute the proposed calls one at a time: later calls may depend on
	// canvas state mutated by earlier ones. A failing call becomes a
	// textual result and never aborts its siblings.
	executed := make([]executedCall, 0, len(proposal.Message.ToolCalls))
	conversation = append(conversation, proposal.Message)
	for _, call := range proposal.Message.ToolCalls {
		result := o.executeTool(ctx, call)
		executed = append(executed, executedCall{Call: call, Result: result})
		conversation = append(conversation, domain.Message{
			Role:      domain.RoleTool,
			Name:      call.Name,
			Content:   result.Content,
			ToolCalls: []domain.ToolCall{{ID: call.ID, Name: call.Name}},
			Timestamp: time.Now(),
		})
	}

	operationID, err := o.deps.Tracker.Record(ctx, userID, canvasID, executed)
	if err != nil {
		// Losing the audit record must not lose the user's work.
		o.deps.Logger.Error("failed to record operation", "user", userID, "error", err)
	}

	// Second pass: summary only, no tool access.
	conversation = append(conversation, domain.Message{
		Role:      domain.RoleUser,
		Content:   summaryInstruction,
		Timestamp: time.Now(),
	})
	summary, err := o.deps.LLM.Chat(ctx, domain.ChatRequest{
		Messages:    conversation,
		MaxTokens:   o.deps.MaxTokens,
		Temperature: o.deps.Temperature,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("model summary: %w", err)
	}
	usage.Add(summary.Usage)

	span.SetAttributes(tracer.IntAttr("tools.executed", len(executed)))
	tracer.SetOK(span)
	o.deps.Logger.Info("command completed",
		"user", userID,
		"canvas", canvasID,
		"tools", len(executed),
		"tokens", usage.TotalTokens,
		"operation", operationID,
	)

	return &CommandResult{
		Message:       summary.Message.Content,
		ToolsExecuted: len(executed),
		TokenUsage:    usage.TotalTokens,
		OperationID:   operationID,
	}, nil
}

// executeTool resolves and runs one proposed call. Unknown tool names and
// handler failures yield textual results so the summary pass can explain
// them to the user.
func (o *Orchestrator) executeTool(ctx context.Context, call domain.ToolCall) *domain.ToolResult {
	t, err := o.deps.Tools.Get(call.Name)
	if err != nil {
		o.deps.Logger.Warn("unknown tool requested", "tool", call.Name)
		return &domain.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    fmt.Sprintf("unknown function %q", call.Name),
		}
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		o.deps.Logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return &domain.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    "Error: " + err.Error(),
		}
	}
	result.ToolCallID = call.ID
	return result
}
