package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/tracer"
)

// UndoTool reverses a previously recorded operation where possible. Only
// shape creations carry enough information to be reversed; updates and
// deletes have no prior-state snapshot and are skipped with a log line.
type UndoTool struct {
	shapes domain.ShapeStore
	ops    domain.OperationStore
	logger *slog.Logger
}

// NewUndoTool creates the undo_ai_operation tool.
func NewUndoTool(shapes domain.ShapeStore, ops domain.OperationStore, logger *slog.Logger) *UndoTool {
	return &UndoTool{shapes: shapes, ops: ops, logger: logger}
}

func (t *UndoTool) Name() string { return "undo_ai_operation" }
func (t *UndoTool) Description() string {
	return "Undo a previous operation, by ID or defaulting to the user's most " +
		"recent one. Shapes it created are removed; updates and deletes " +
		"cannot be restored."
}

func (t *UndoTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"operationId": {
					"type": "string",
					"description": "Operation to undo; omit for the most recent one"
				}
			}
		}`),
	}
}

type undoParams struct {
	OperationID string `json:"operationId,omitempty"`
}

func (t *UndoTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.undo_ai_operation", t.logger, params,
		func(ctx context.Context, span trace.Span, p undoParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}

			opID := p.OperationID
			if opID == "" {
				opID, err = t.ops.LastOperationID(ctx, userID)
				if err != nil {
					return nil, err
				}
				if opID == "" {
					return nil, fmt.Errorf("nothing to undo: no previous operation recorded")
				}
			}

			op, err := t.ops.GetOperation(ctx, userID, opID)
			if err != nil {
				return nil, err
			}
			if op.Undone {
				return nil, fmt.Errorf("operation %s: %w", opID, domain.ErrAlreadyUndone)
			}
			// Only turns that never mutated the canvas are rejected.
			// Mutation turns whose calls are all irreversible proceed
			// and report zero removals below.
			if !op.Reversible {
				return nil, fmt.Errorf("operation %s: %w", opID, domain.ErrIrreversible)
			}
			if op.CanvasID != "" {
				canvasID = op.CanvasID
			}

			// Walk the recorded calls newest-first, reversing only
			// creations: their affected IDs are simply deleted again.
			removed := 0
			for i := len(op.ToolCalls) - 1; i >= 0; i-- {
				tc := op.ToolCalls[i]
				if tc.Reversibility != domain.Reversible {
					t.logger.Info("skipping irreversible tool call during undo",
						"operation", opID, "function", tc.FunctionName)
					continue
				}
				if len(tc.AffectedShapeIDs) == 0 {
					continue
				}
				deleted, err := t.shapes.DeleteShapes(ctx, canvasID, userID, tc.AffectedShapeIDs)
				if err != nil {
					return nil, err
				}
				removed += len(deleted)
			}

			if err := t.ops.MarkUndone(ctx, userID, opID); err != nil {
				return nil, err
			}
			if err := t.ops.ClearLastOperation(ctx, userID); err != nil {
				return nil, err
			}

			span.SetAttributes(
				tracer.StringAttr("operation.id", opID),
				tracer.IntAttr("shapes.removed", removed),
			)
			t.logger.Debug("operation undone", "operation", opID, "removed", removed)
			return TextResult(fmt.Sprintf("Undid operation %s: removed %d shape(s). "+
				"Updates and deletions cannot be restored.", opID, removed)), nil
		},
	)
}
