package tool

import (
	"context"
	"fmt"
	"time"

	"canvas-copilot/internal/domain"
)

// shapeSpec is the wire shape description shared by create_shape,
// bulk_create, and template expansion. Optional fields are pointers so an
// omitted value can fall back to a type-dependent default.
type shapeSpec struct {
	Type     string   `json:"type"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Fill     string   `json:"fill,omitempty"`
	Text     string   `json:"text,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

// buildShape validates spec and produces a fully-formed shape with
// type-dependent defaults filled in. zIndex and provenance are stamped from
// the arguments; the caller owns ID generation and batching.
func buildShape(spec shapeSpec, id string, zIndex int, userID string, now time.Time) (*domain.Shape, error) {
	if err := ValidateShapeType(spec.Type); err != nil {
		return nil, err
	}
	shapeType := domain.ShapeType(spec.Type)

	if err := ValidateAll(
		ValidateCoord("x", spec.X),
		ValidateCoord("y", spec.Y),
		ValidateHexColor("fill", spec.Fill),
	); err != nil {
		return nil, err
	}

	w, h := domain.DefaultSize(shapeType)
	if spec.Width != nil {
		if err := ValidateSize("width", *spec.Width); err != nil {
			return nil, err
		}
		w = *spec.Width
	}
	if spec.Height != nil {
		if err := ValidateSize("height", *spec.Height); err != nil {
			return nil, err
		}
		h = *spec.Height
	}

	rotation := 0.0
	if spec.Rotation != nil {
		if err := ValidateRotation(*spec.Rotation); err != nil {
			return nil, err
		}
		rotation = *spec.Rotation
	}

	opacity := 1.0
	if spec.Opacity != nil {
		if err := ValidateOpacity(*spec.Opacity); err != nil {
			return nil, err
		}
		opacity = *spec.Opacity
	}

	fill := spec.Fill
	if fill == "" {
		if shapeType == domain.ShapeText {
			fill = domain.DefaultTextFill
		} else {
			fill = domain.DefaultFill
		}
	}

	sh := &domain.Shape{
		ID:             id,
		Type:           shapeType,
		X:              spec.X,
		Y:              spec.Y,
		Width:          w,
		Height:         h,
		Rotation:       rotation,
		Opacity:        opacity,
		Fill:           fill,
		ZIndex:         zIndex,
		CreatedBy:      userID,
		CreatedAt:      now,
		LastModifiedBy: userID,
		LastModifiedAt: now,
	}

	if shapeType == domain.ShapeText {
		text := SanitizeText(spec.Text)
		if text == "" {
			return nil, fmt.Errorf("'text' is required for text shapes")
		}
		fontSize := domain.DefaultFontSize
		if spec.FontSize != nil {
			if err := ValidateFontSize(*spec.FontSize); err != nil {
				return nil, err
			}
			fontSize = *spec.FontSize
		}
		sh.Text = text
		sh.FontSize = fontSize
	}

	return sh, nil
}

// requestIdentity pulls the acting user and canvas from the request context.
func requestIdentity(ctx context.Context) (userID, canvasID string, err error) {
	userID = domain.UserIDFromContext(ctx)
	if userID == "" {
		return "", "", fmt.Errorf("no user identity in request context")
	}
	canvasID = domain.CanvasIDFromContext(ctx)
	if canvasID == "" {
		canvasID = domain.DefaultCanvasID
	}
	return userID, canvasID, nil
}
