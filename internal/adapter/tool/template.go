package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/tracer"
)

// templateParams are the inputs every layout generator is a pure function of.
type templateParams struct {
	Template     string   `json:"template"`
	CenterX      float64  `json:"centerX"`
	CenterY      float64  `json:"centerY"`
	PrimaryColor string   `json:"primaryColor,omitempty"`
	TextColor    string   `json:"textColor,omitempty"`
	Scale        *float64 `json:"scale,omitempty"`
}

// templateGenerator produces a fixed ordered list of shape specs from the
// template inputs. Generators are pure; IDs, zIndex and provenance are
// stamped at write time.
type templateGenerator func(centerX, centerY float64, primary, text string, scale float64) []shapeSpec

// templates is the registry of named layout generators.
var templates = map[string]templateGenerator{
	"login-form":     loginFormTemplate,
	"dashboard-card": dashboardCardTemplate,
}

// loginFormTemplate produces exactly 7 shapes: a title, two field
// backgrounds with labels, and a button with its label.
func loginFormTemplate(cx, cy float64, primary, text string, scale float64) []shapeSpec {
	s := scale
	fieldW, fieldH := 320*s, 48*s
	left := cx - fieldW/2

	fsize := func(v float64) *float64 { v = clampFont(v * s); return &v }
	dim := func(v float64) *float64 { return &v }
	white := "#FFFFFF"

	return []shapeSpec{
		{Type: "text", X: left, Y: cy - 150*s, Width: dim(fieldW), Height: dim(40 * s),
			Text: "Sign In", Fill: text, FontSize: fsize(28)},
		{Type: "rectangle", X: left, Y: cy - 90*s, Width: dim(fieldW), Height: dim(fieldH), Fill: white},
		{Type: "text", X: left + 12*s, Y: cy - 78*s, Width: dim(fieldW - 24*s), Height: dim(24 * s),
			Text: "Email", Fill: text, FontSize: fsize(14)},
		{Type: "rectangle", X: left, Y: cy - 20*s, Width: dim(fieldW), Height: dim(fieldH), Fill: white},
		{Type: "text", X: left + 12*s, Y: cy - 8*s, Width: dim(fieldW - 24*s), Height: dim(24 * s),
			Text: "Password", Fill: text, FontSize: fsize(14)},
		{Type: "rectangle", X: left, Y: cy + 50*s, Width: dim(fieldW), Height: dim(fieldH), Fill: primary},
		{Type: "text", X: left + fieldW/2 - 40*s, Y: cy + 62*s, Width: dim(80 * s), Height: dim(24 * s),
			Text: "Log In", Fill: "#FFFFFF", FontSize: fsize(16)},
	}
}

// dashboardCardTemplate produces 5 shapes: a card background, an accent
// bar, a title, a headline metric and its caption.
func dashboardCardTemplate(cx, cy float64, primary, text string, scale float64) []shapeSpec {
	s := scale
	cardW, cardH := 280*s, 180*s
	left, top := cx-cardW/2, cy-cardH/2

	fsize := func(v float64) *float64 { v = clampFont(v * s); return &v }
	dim := func(v float64) *float64 { return &v }

	return []shapeSpec{
		{Type: "rectangle", X: left, Y: top, Width: dim(cardW), Height: dim(cardH), Fill: "#FFFFFF"},
		{Type: "rectangle", X: left, Y: top, Width: dim(cardW), Height: dim(6 * s), Fill: primary},
		{Type: "text", X: left + 20*s, Y: top + 24*s, Width: dim(cardW - 40*s), Height: dim(24 * s),
			Text: "Revenue", Fill: text, FontSize: fsize(14)},
		{Type: "text", X: left + 20*s, Y: top + 60*s, Width: dim(cardW - 40*s), Height: dim(48 * s),
			Text: "$12,400", Fill: text, FontSize: fsize(32)},
		{Type: "text", X: left + 20*s, Y: top + 120*s, Width: dim(cardW - 40*s), Height: dim(20 * s),
			Text: "+8% vs last month", Fill: primary, FontSize: fsize(12)},
	}
}

func clampFont(v float64) float64 {
	if v < domain.MinFontSize {
		return domain.MinFontSize
	}
	if v > domain.MaxFontSize {
		return domain.MaxFontSize
	}
	return v
}

// templateNames lists the registered templates in a stable order.
func templateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TemplateTool instantiates a named multi-shape layout in one batched write.
type TemplateTool struct {
	store  domain.ShapeStore
	ids    IDGenerator
	logger *slog.Logger
	now    func() time.Time
}

// NewTemplateTool creates the create_from_template tool.
func NewTemplateTool(store domain.ShapeStore, ids IDGenerator, logger *slog.Logger) *TemplateTool {
	return &TemplateTool{store: store, ids: ids, logger: logger, now: time.Now}
}

func (t *TemplateTool) Name() string { return "create_from_template" }
func (t *TemplateTool) Description() string {
	return "Create a ready-made multi-shape layout (for example a login form " +
		"or a dashboard card) centered on a point, with optional colors and scale."
}

func (t *TemplateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"template": {
					"type": "string",
					"enum": ["login-form", "dashboard-card"],
					"description": "Name of the layout to instantiate"
				},
				"centerX": {"type": "number", "minimum": 0, "maximum": 30000},
				"centerY": {"type": "number", "minimum": 0, "maximum": 30000},
				"primaryColor": {"type": "string", "description": "Hex accent color"},
				"textColor": {"type": "string", "description": "Hex text color"},
				"scale": {"type": "number", "minimum": 0.25, "maximum": 4}
			},
			"required": ["template", "centerX", "centerY"]
		}`),
	}
}

func (t *TemplateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.create_from_template", t.logger, params,
		func(ctx context.Context, span trace.Span, p templateParams) (any, error) {
			userID, canvasID, err := requestIdentity(ctx)
			if err != nil {
				return nil, err
			}

			gen, ok := templates[p.Template]
			if !ok {
				return nil, fmt.Errorf("template %q not found (want: %s)", p.Template, joinComma(templateNames()))
			}
			if err := ValidateAll(
				ValidateCoord("centerX", p.CenterX),
				ValidateCoord("centerY", p.CenterY),
				ValidateHexColor("primaryColor", p.PrimaryColor),
				ValidateHexColor("textColor", p.TextColor),
			); err != nil {
				return nil, err
			}

			primary := p.PrimaryColor
			if primary == "" {
				primary = domain.DefaultFill
			}
			textColor := p.TextColor
			if textColor == "" {
				textColor = domain.DefaultTextFill
			}
			scale := 1.0
			if p.Scale != nil && *p.Scale > 0 {
				scale = *p.Scale
			}

			specs := gen(p.CenterX, p.CenterY, primary, textColor, scale)

			maxZ, err := t.store.MaxZIndex(ctx, canvasID)
			if err != nil {
				return nil, err
			}

			now := t.now()
			shapes := make([]domain.Shape, 0, len(specs))
			ids := make([]string, 0, len(specs))
			for i, spec := range specs {
				sh, err := buildShape(spec, t.ids.ShapeID(now, i), maxZ+1+i, userID, now)
				if err != nil {
					return nil, fmt.Errorf("template shape %d: %w", i, err)
				}
				shapes = append(shapes, *sh)
				ids = append(ids, sh.ID)
			}

			if err := t.store.BatchCreate(ctx, canvasID, shapes); err != nil {
				return nil, err
			}

			span.SetAttributes(
				tracer.StringAttr("template.name", p.Template),
				tracer.IntAttr("shapes.created", len(shapes)),
			)
			t.logger.Debug("template instantiated", "template", p.Template, "shapes", len(shapes))
			return AffectedResult(
				fmt.Sprintf("Created %q layout with %d shapes: %s", p.Template, len(ids), joinComma(ids)),
				ids...,
			), nil
		},
	)
}
