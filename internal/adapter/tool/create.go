package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/tracer"
)

// CreateTool writes one new shape to the canvas.
type CreateTool struct {
	store  domain.ShapeStore
	ids    IDGenerator
	logger *slog.Logger
	now    func() time.Time
}

// NewCreateTool creates the create_shape tool.
func NewCreateTool(store domain.ShapeStore, ids IDGenerator, logger *slog.Logger) *CreateTool {
	return &CreateTool{store: store, ids: ids, logger: logger, now: time.Now}
}

func (t *CreateTool) Name() string { return "create_shape" }
func (t *CreateTool) Description() string {
	return "Create a single shape on the canvas. Supply type and position; " +
		"size, fill and opacity fall back to sensible defaults. " +
		"Text shapes require text content."
}

func (t *CreateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"type": {
					"type": "string",
					"enum": ["rectangle", "circle", "line", "text", "triangle", "star", "diamond", "hexagon", "pentagon"],
					"description": "The kind of shape to create"
				},
				"x": {"type": "number", "minimum": 0, "maximum": 30000, "description": "Left coordinate"},
				"y": {"type": "number", "minimum": 0, "maximum": 30000, "description": "Top coordinate"},
				"width": {"type": "number", "minimum": 1, "maximum": 10000},
				"height": {"type": "number", "minimum": 1, "maximum": 10000},
				"rotation": {"type": "number", "minimum": 0, "maximum": 360},
				"opacity": {"type": "number", "minimum": 0, "maximum": 1},
				"fill": {"type": "string", "description": "Hex fill color like #4F46E5"},
				"text": {"type": "string", "description": "Text content (text shapes only)"},
				"fontSize": {"type": "number", "minimum": 8, "maximum": 400}
			},
			"required": ["type", "x", "y"]
		}`),
	}
}

func (t *CreateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.create_shape", t.logger, params,
		func(ctx context.Context, span trace.Span, p shapeSpec) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}

			maxZ, err := t.store.MaxZIndex(ctx, canvasID)
			if err != nil {
				return nil, err
			}

			now := t.now()
			sh, err := buildShape(p, t.ids.ShapeID(now, 0), maxZ+1, userID, now)
			if err != nil {
				return nil, err
			}

			if err := t.store.CreateShape(ctx, canvasID, sh); err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.StringAttr("shape.id", sh.ID))
			t.logger.Debug("shape created", "shape", sh.ID, "type", sh.Type, "user", userID)
			return AffectedResult(
				fmt.Sprintf("Created %s %s at (%.0f, %.0f)", sh.Type, sh.ID, sh.X, sh.Y),
				sh.ID,
			), nil
		},
	)
}
