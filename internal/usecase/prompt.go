package usecase

import (
	"fmt"
	"strings"

	"canvas-copilot/internal/domain"
)

// systemInstructions is the fixed block prepended to every model prompt.
const systemInstructions = `You are a canvas assistant. You manipulate shapes on a shared 30000x30000 design canvas by calling the provided tools.

Rules:
- Always call query_canvas before modifying shapes you have not created in this turn, so references like "the blue rectangle" resolve to real IDs.
- Use bulk_create for more than three shapes at once; never loop create_shape.
- Resolve deictic references ("here", "this", "these") using the canvas context: the viewport center is where the user is looking, and selected shape IDs are what "this" refers to.
- Coordinates are top-left anchored. Keep shapes fully inside the canvas.
- After your tool calls run you will be asked to summarize what you did in one or two friendly sentences. Never mention tool names or IDs in the summary.`

// CanvasContext is the live view-state the client sends along with a
// command so deictic references resolve to concrete coordinates and IDs.
type CanvasContext struct {
	SelectedShapes []string     `json:"selectedShapes,omitempty"`
	ViewportCenter domain.Point `json:"viewportCenter"`
	Zoom           float64      `json:"zoom,omitempty"`
	TotalShapes    int          `json:"totalShapes"`
}

// buildSystemPrompt assembles the instruction block plus the live canvas
// context section.
func buildSystemPrompt(cc *CanvasContext) string {
	var b strings.Builder
	b.WriteString(systemInstructions)
	b.WriteString("\n\nCurrent canvas context:\n")

	if cc == nil {
		b.WriteString("- No canvas context provided.")
		return b.String()
	}

	fmt.Fprintf(&b, "- Total shapes on canvas: %d\n", cc.TotalShapes)
	fmt.Fprintf(&b, "- Viewport center: (%.0f, %.0f)\n", cc.ViewportCenter.X, cc.ViewportCenter.Y)
	if cc.Zoom > 0 {
		fmt.Fprintf(&b, "- Zoom level: %.2f\n", cc.Zoom)
	}
	if len(cc.SelectedShapes) > 0 {
		fmt.Fprintf(&b, "- Selected shape IDs: %s\n", strings.Join(cc.SelectedShapes, ", "))
	} else {
		b.WriteString("- No shapes selected\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// summaryInstruction asks the model for the closing natural-language reply
// after tools have run; no further tool access is offered.
const summaryInstruction = "All tool calls have finished; their results are above. " +
	"Reply to the user with one or two friendly sentences describing what happened. " +
	"Do not mention tool names or shape IDs."
