package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/tracer"
)

// defaultSpacing is the gap between arranged shapes when none is given.
const defaultSpacing = 20.0

var arrangements = []string{
	"grid", "horizontal", "vertical",
	"align-left", "align-center", "align-right",
	"align-top", "align-middle", "align-bottom",
}

// ArrangeTool computes new positions for a set of shapes and applies them
// as one batch of position-only updates.
type ArrangeTool struct {
	store  domain.ShapeStore
	logger *slog.Logger
}

// NewArrangeTool creates the layout_arrange tool.
func NewArrangeTool(store domain.ShapeStore, logger *slog.Logger) *ArrangeTool {
	return &ArrangeTool{store: store, logger: logger}
}

func (t *ArrangeTool) Name() string { return "layout_arrange" }
func (t *ArrangeTool) Description() string {
	return "Arrange a set of shapes: pack them into a grid, lay them out in a " +
		"row or column, or align them along one edge or axis."
}

func (t *ArrangeTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"shapeIds": {
					"type": "array",
					"items": {"type": "string"},
					"minItems": 1,
					"description": "IDs of the shapes to arrange"
				},
				"arrangement": {
					"type": "string",
					"enum": ["grid", "horizontal", "vertical", "align-left", "align-center", "align-right", "align-top", "align-middle", "align-bottom"],
					"description": "How to arrange the shapes"
				},
				"spacing": {"type": "number", "minimum": 0, "description": "Gap between shapes (default 20)"}
			},
			"required": ["shapeIds", "arrangement"]
		}`),
	}
}

type arrangeParams struct {
	ShapeIDs    []string `json:"shapeIds"`
	Arrangement string   `json:"arrangement"`
	Spacing     *float64 `json:"spacing,omitempty"`
}

func (t *ArrangeTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.layout_arrange", t.logger, params,
		func(ctx context.Context, span trace.Span, p arrangeParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}
			if len(p.ShapeIDs) == 0 {
				return nil, fmt.Errorf("'shapeIds' is required")
			}
			if !validArrangement(p.Arrangement) {
				return nil, fmt.Errorf("unknown arrangement %q (want: %s)", p.Arrangement, joinComma(arrangements))
			}

			spacing := defaultSpacing
			if p.Spacing != nil && *p.Spacing >= 0 {
				spacing = *p.Spacing
			}

			// Load the selection in input order, skipping missing IDs.
			var shapes []domain.Shape
			for _, id := range p.ShapeIDs {
				sh, err := t.store.GetShape(ctx, canvasID, id)
				if err != nil {
					continue
				}
				shapes = append(shapes, *sh)
			}
			if len(shapes) == 0 {
				return nil, fmt.Errorf("none of the given shapes exist")
			}

			moves := computeArrangement(shapes, p.Arrangement, spacing)

			moved, err := t.store.BatchPatchPositions(ctx, canvasID, userID, moves)
			if err != nil {
				return nil, err
			}

			span.SetAttributes(
				tracer.StringAttr("arrange.kind", p.Arrangement),
				tracer.IntAttr("shapes.moved", len(moved)),
			)
			t.logger.Debug("shapes arranged", "kind", p.Arrangement, "count", len(moved))
			return AffectedResult(
				fmt.Sprintf("Arranged %d shape(s) using %s layout", len(moved), p.Arrangement),
				moved...,
			), nil
		},
	)
}

func validArrangement(kind string) bool {
	for _, a := range arrangements {
		if kind == a {
			return true
		}
	}
	return false
}

// computeArrangement returns position updates realizing the requested
// layout over the selection, in selection order.
func computeArrangement(shapes []domain.Shape, kind string, spacing float64) []domain.PositionUpdate {
	minX, minY := shapes[0].X, shapes[0].Y
	maxX, maxY := shapes[0].X, shapes[0].Y
	sumX, sumY := 0.0, 0.0
	cellW, cellH := 0.0, 0.0
	for _, s := range shapes {
		minX = math.Min(minX, s.X)
		minY = math.Min(minY, s.Y)
		maxX = math.Max(maxX, s.X)
		maxY = math.Max(maxY, s.Y)
		sumX += s.X
		sumY += s.Y
		cellW = math.Max(cellW, s.Width)
		cellH = math.Max(cellH, s.Height)
	}
	avgX := sumX / float64(len(shapes))
	avgY := sumY / float64(len(shapes))

	moves := make([]domain.PositionUpdate, len(shapes))
	switch kind {
	case "grid":
		// ⌈√n⌉ columns anchored at the selection's min x/y; the pitch is
		// the largest cell in the selection plus the spacing.
		cols := int(math.Ceil(math.Sqrt(float64(len(shapes)))))
		for i, s := range shapes {
			row, col := i/cols, i%cols
			moves[i] = domain.PositionUpdate{
				ShapeID: s.ID,
				Pos: domain.Point{
					X: minX + float64(col)*(cellW+spacing),
					Y: minY + float64(row)*(cellH+spacing),
				},
			}
		}
	case "horizontal":
		x := minX
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: x, Y: avgY}}
			x += s.Width + spacing
		}
	case "vertical":
		y := minY
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: avgX, Y: y}}
			y += s.Height + spacing
		}
	case "align-left":
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: minX, Y: s.Y}}
		}
	case "align-center":
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: avgX, Y: s.Y}}
		}
	case "align-right":
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: maxX, Y: s.Y}}
		}
	case "align-top":
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: s.X, Y: minY}}
		}
	case "align-middle":
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: s.X, Y: avgY}}
		}
	case "align-bottom":
		for i, s := range shapes {
			moves[i] = domain.PositionUpdate{ShapeID: s.ID, Pos: domain.Point{X: s.X, Y: maxY}}
		}
	}
	return moves
}
