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

// DeleteTool removes one or more shapes from the canvas.
type DeleteTool struct {
	store  domain.ShapeStore
	logger *slog.Logger
}

// NewDeleteTool creates the delete_shape tool.
func NewDeleteTool(store domain.ShapeStore, logger *slog.Logger) *DeleteTool {
	return &DeleteTool{store: store, logger: logger}
}

func (t *DeleteTool) Name() string { return "delete_shape" }
func (t *DeleteTool) Description() string {
	return "Delete one shape by shapeId, or several at once by shapeIds. " +
		"Already-missing IDs are ignored."
}

func (t *DeleteTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"shapeId": {"type": "string", "description": "ID of a single shape to delete"},
				"shapeIds": {
					"type": "array",
					"items": {"type": "string"},
					"description": "IDs of several shapes to delete"
				}
			}
		}`),
	}
}

type deleteParams struct {
	ShapeID  string   `json:"shapeId,omitempty"`
	ShapeIDs []string `json:"shapeIds,omitempty"`
}

func (t *DeleteTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.delete_shape", t.logger, params,
		func(ctx context.Context, span trace.Span, p deleteParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}

			ids := p.ShapeIDs
			if p.ShapeID != "" {
				ids = append(ids, p.ShapeID)
			}
			if len(ids) == 0 {
				return nil, fmt.Errorf("'shapeId' or 'shapeIds' is required")
			}

			deleted, err := t.store.DeleteShapes(ctx, canvasID, userID, ids)
			if err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.IntAttr("shapes.deleted", len(deleted)))
			t.logger.Debug("shapes deleted", "count", len(deleted), "user", userID)

			if len(deleted) == 0 {
				return TextResult("No shapes were deleted (missing or locked by another user)."), nil
			}
			return AffectedResult(
				fmt.Sprintf("Deleted %d shape(s): %s", len(deleted), joinComma(deleted)),
				deleted...,
			), nil
		},
	)
}
