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

// maxBulkShapes caps one bulk_create batch.
const maxBulkShapes = 500

// BulkCreateTool writes many shapes in one atomic batch.
type BulkCreateTool struct {
	store  domain.ShapeStore
	ids    IDGenerator
	logger *slog.Logger
	now    func() time.Time
}

// NewBulkCreateTool creates the bulk_create tool.
func NewBulkCreateTool(store domain.ShapeStore, ids IDGenerator, logger *slog.Logger) *BulkCreateTool {
	return &BulkCreateTool{store: store, ids: ids, logger: logger, now: time.Now}
}

func (t *BulkCreateTool) Name() string { return "bulk_create" }
func (t *BulkCreateTool) Description() string {
	return "Create many shapes at once as a single atomic write. Much faster " +
		"than repeated create_shape calls for grids, charts or scattered sets."
}

func (t *BulkCreateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"shapes": {
					"type": "array",
					"minItems": 1,
					"maxItems": 500,
					"items": {
						"type": "object",
						"properties": {
							"type": {
								"type": "string",
								"enum": ["rectangle", "circle", "line", "text", "triangle", "star", "diamond", "hexagon", "pentagon"]
							},
							"x": {"type": "number", "minimum": 0, "maximum": 30000},
							"y": {"type": "number", "minimum": 0, "maximum": 30000},
							"width": {"type": "number", "minimum": 1, "maximum": 10000},
							"height": {"type": "number", "minimum": 1, "maximum": 10000},
							"rotation": {"type": "number", "minimum": 0, "maximum": 360},
							"opacity": {"type": "number", "minimum": 0, "maximum": 1},
							"fill": {"type": "string"},
							"text": {"type": "string"},
							"fontSize": {"type": "number", "minimum": 8, "maximum": 400}
						},
						"required": ["type", "x", "y"]
					}
				}
			},
			"required": ["shapes"]
		}`),
	}
}

type bulkCreateParams struct {
	Shapes []shapeSpec `json:"shapes"`
}

func (t *BulkCreateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.bulk_create", t.logger, params,
		func(ctx context.Context, span trace.Span, p bulkCreateParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}
			if len(p.Shapes) == 0 {
				return nil, fmt.Errorf("'shapes' is required")
			}
			if len(p.Shapes) > maxBulkShapes {
				return nil, fmt.Errorf("too many shapes: %d (max %d)", len(p.Shapes), maxBulkShapes)
			}

			maxZ, err := t.store.MaxZIndex(ctx, canvasID)
			if err != nil {
				return nil, err
			}

			// One shared timestamp and a contiguous zIndex run across the
			// batch; IDs are salted with the array index so items created
			// in the same millisecond never collide.
			now := t.now()
			shapes := make([]domain.Shape, 0, len(p.Shapes))
			ids := make([]string, 0, len(p.Shapes))
			for i, spec := range p.Shapes {
				sh, err := buildShape(spec, t.ids.ShapeID(now, i), maxZ+1+i, userID, now)
				if err != nil {
					return nil, fmt.Errorf("shape %d: %w", i, err)
				}
				shapes = append(shapes, *sh)
				ids = append(ids, sh.ID)
			}

			if err := t.store.BatchCreate(ctx, canvasID, shapes); err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.IntAttr("shapes.created", len(shapes)))
			t.logger.Debug("bulk create committed", "count", len(shapes), "user", userID)
			return AffectedResult(
				fmt.Sprintf("Created %d shape(s) in one batch: %s", len(ids), joinComma(ids)),
				ids...,
			), nil
		},
	)
}

// BulkUpdateTool applies a list of per-shape patches, skipping shapes that
// are missing or lock-held by another user.
type BulkUpdateTool struct {
	store  domain.ShapeStore
	logger *slog.Logger
}

// NewBulkUpdateTool creates the bulk_update tool.
func NewBulkUpdateTool(store domain.ShapeStore, logger *slog.Logger) *BulkUpdateTool {
	return &BulkUpdateTool{store: store, logger: logger}
}

func (t *BulkUpdateTool) Name() string { return "bulk_update" }
func (t *BulkUpdateTool) Description() string {
	return "Update many shapes in one call. Each entry names a shapeId and the " +
		"fields to change. Missing or locked shapes are skipped, not failed."
}

func (t *BulkUpdateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"updates": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"properties": {
							"shapeId": {"type": "string"},
							"x": {"type": "number", "minimum": 0, "maximum": 30000},
							"y": {"type": "number", "minimum": 0, "maximum": 30000},
							"width": {"type": "number", "minimum": 1, "maximum": 10000},
							"height": {"type": "number", "minimum": 1, "maximum": 10000},
							"rotation": {"type": "number", "minimum": 0, "maximum": 360},
							"opacity": {"type": "number", "minimum": 0, "maximum": 1},
							"fill": {"type": "string"},
							"text": {"type": "string"},
							"fontSize": {"type": "number", "minimum": 8, "maximum": 400}
						},
						"required": ["shapeId"]
					}
				}
			},
			"required": ["updates"]
		}`),
	}
}

type bulkUpdateParams struct {
	Updates []patchParams `json:"updates"`
}

func (t *BulkUpdateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.bulk_update", t.logger, params,
		func(ctx context.Context, span trace.Span, p bulkUpdateParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}
			if len(p.Updates) == 0 {
				return nil, fmt.Errorf("'updates' is required")
			}

			var updated []string
			skipped := 0
			for i, u := range p.Updates {
				if u.ShapeID == "" {
					return nil, fmt.Errorf("update %d: 'shapeId' is required", i)
				}
				patch, err := u.toShapePatch()
				if err != nil {
					return nil, fmt.Errorf("update %d: %w", i, err)
				}

				if _, err := t.store.PatchShape(ctx, canvasID, u.ShapeID, userID, patch); err != nil {
					// missing or locked shapes are skipped, not failed
					skipped++
					t.logger.Debug("bulk update skipped shape", "shape", u.ShapeID, "reason", err)
					continue
				}
				updated = append(updated, u.ShapeID)
			}

			span.SetAttributes(
				tracer.IntAttr("shapes.updated", len(updated)),
				tracer.IntAttr("shapes.skipped", skipped),
			)
			t.logger.Debug("bulk update finished", "updated", len(updated), "skipped", skipped)

			msg := fmt.Sprintf("Updated %d shape(s)", len(updated))
			if skipped > 0 {
				msg += fmt.Sprintf(" (%d skipped: missing or locked)", skipped)
			}
			return AffectedResult(msg, updated...), nil
		},
	)
}
