package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/tracer"
)

// emptyCanvasMessage is the fixed response for a canvas with no shapes.
const emptyCanvasMessage = "The canvas is currently empty. There are no shapes to describe."

// QueryTool produces a read-only summary of the canvas for model grounding.
type QueryTool struct {
	store  domain.ShapeStore
	logger *slog.Logger
}

// NewQueryTool creates the query_canvas tool.
func NewQueryTool(store domain.ShapeStore, logger *slog.Logger) *QueryTool {
	return &QueryTool{store: store, logger: logger}
}

func (t *QueryTool) Name() string { return "query_canvas" }
func (t *QueryTool) Description() string {
	return "List every shape on the canvas with its position, size, color and " +
		"text. Use this to ground references like 'the blue rectangle' " +
		"before modifying anything."
}

func (t *QueryTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

type queryParams struct{}

func (t *QueryTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.query_canvas", t.logger, params,
		func(ctx context.Context, span trace.Span, _ queryParams) (any, error) {
			_, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}

			shapes, err := t.store.ListShapes(ctx, canvasID)
			if err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.IntAttr("shapes.count", len(shapes)))
			if len(shapes) == 0 {
				return TextResult(emptyCanvasMessage), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "The canvas has %d shape(s):\n", len(shapes))
			for _, s := range shapes {
				fmt.Fprintf(&b, "- %s %s at (%.0f, %.0f), size %.0fx%.0f, fill %s",
					s.Type, s.ID, s.X, s.Y, s.Width, s.Height, s.Fill)
				if s.Type == domain.ShapeText {
					fmt.Fprintf(&b, ", text %q (font %.0f)", s.Text, s.FontSize)
				}
				b.WriteString("\n")
			}
			return TextResult(strings.TrimRight(b.String(), "\n")), nil
		},
	)
}
