package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
)

// patchParams is the wire patch shared by update_shape and bulk_update.
type patchParams struct {
	ShapeID  string   `json:"shapeId"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Fill     *string  `json:"fill,omitempty"`
	Text     *string  `json:"text,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

// toShapePatch validates the provided fields and converts them into a
// store-level patch, sanitizing text when present.
func (p patchParams) toShapePatch() (domain.ShapePatch, error) {
	var patch domain.ShapePatch

	if p.X != nil {
		if err := ValidateCoord("x", *p.X); err != nil {
			return patch, err
		}
		patch.X = p.X
	}
	if p.Y != nil {
		if err := ValidateCoord("y", *p.Y); err != nil {
			return patch, err
		}
		patch.Y = p.Y
	}
	if p.Width != nil {
		if err := ValidateSize("width", *p.Width); err != nil {
			return patch, err
		}
		patch.Width = p.Width
	}
	if p.Height != nil {
		if err := ValidateSize("height", *p.Height); err != nil {
			return patch, err
		}
		patch.Height = p.Height
	}
	if p.Rotation != nil {
		if err := ValidateRotation(*p.Rotation); err != nil {
			return patch, err
		}
		patch.Rotation = p.Rotation
	}
	if p.Opacity != nil {
		if err := ValidateOpacity(*p.Opacity); err != nil {
			return patch, err
		}
		patch.Opacity = p.Opacity
	}
	if p.Fill != nil {
		if err := ValidateHexColor("fill", *p.Fill); err != nil {
			return patch, err
		}
		patch.Fill = p.Fill
	}
	if p.Text != nil {
		text := SanitizeText(*p.Text)
		patch.Text = &text
	}
	if p.FontSize != nil {
		if err := ValidateFontSize(*p.FontSize); err != nil {
			return patch, err
		}
		patch.FontSize = p.FontSize
	}

	return patch, nil
}

// UpdateTool merge-updates fields of an existing shape.
type UpdateTool struct {
	store  domain.ShapeStore
	logger *slog.Logger
}

// NewUpdateTool creates the update_shape tool.
func NewUpdateTool(store domain.ShapeStore, logger *slog.Logger) *UpdateTool {
	return &UpdateTool{store: store, logger: logger}
}

func (t *UpdateTool) Name() string { return "update_shape" }
func (t *UpdateTool) Description() string {
	return "Update fields of an existing shape: position, size, rotation, " +
		"opacity, fill color, text or font size. Unspecified fields keep " +
		"their current values."
}

func (t *UpdateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"shapeId": {"type": "string", "description": "ID of the shape to update"},
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
		}`),
	}
}

func (t *UpdateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.update_shape", t.logger, params,
		func(ctx context.Context, span trace.Span, p patchParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}
			if err := RequireField("shapeId", p.ShapeID); err != nil {
				return nil, err
			}

			patch, err := p.toShapePatch()
			if err != nil {
				return nil, err
			}

			sh, err := t.store.PatchShape(ctx, canvasID, p.ShapeID, userID, patch)
			if err != nil {
				return nil, err
			}

			t.logger.Debug("shape updated", "shape", sh.ID, "user", userID)
			return AffectedResult(fmt.Sprintf("Updated %s %s", sh.Type, sh.ID), sh.ID), nil
		},
	)
}
