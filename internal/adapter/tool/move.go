package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
)

// MoveTool is a restricted update that only changes a shape's position.
type MoveTool struct {
	store  domain.ShapeStore
	logger *slog.Logger
}

// NewMoveTool creates the move_shape tool.
func NewMoveTool(store domain.ShapeStore, logger *slog.Logger) *MoveTool {
	return &MoveTool{store: store, logger: logger}
}

func (t *MoveTool) Name() string { return "move_shape" }
func (t *MoveTool) Description() string {
	return "Move a shape to a new position. Only x and y change; everything else stays."
}

func (t *MoveTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"shapeId": {"type": "string", "description": "ID of the shape to move"},
				"x": {"type": "number", "minimum": 0, "maximum": 30000},
				"y": {"type": "number", "minimum": 0, "maximum": 30000}
			},
			"required": ["shapeId", "x", "y"]
		}`),
	}
}

type moveParams struct {
	ShapeID string  `json:"shapeId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

func (t *MoveTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.move_shape", t.logger, params,
		func(ctx context.Context, span trace.Span, p moveParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}
			if err := ValidateAll(
				RequireField("shapeId", p.ShapeID),
				ValidateCoord("x", p.X),
				ValidateCoord("y", p.Y),
			); err != nil {
				return nil, err
			}

			sh, err := t.store.PatchShape(ctx, canvasID, p.ShapeID, userID, domain.ShapePatch{X: &p.X, Y: &p.Y})
			if err != nil {
				return nil, err
			}

			t.logger.Debug("shape moved", "shape", sh.ID, "x", p.X, "y", p.Y)
			return AffectedResult(
				fmt.Sprintf("Moved %s to (%.0f, %.0f)", sh.ID, p.X, p.Y),
				sh.ID,
			), nil
		},
	)
}
