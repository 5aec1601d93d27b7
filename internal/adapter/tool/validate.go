package tool

import (
	"fmt"
	"regexp"

	"canvas-copilot/internal/domain"
)

// hexColorRegex validates six-digit hex colors like "#4F46E5".
var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// RequireField returns an error if the string value is empty.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("'%s' is required", name)
	}
	return nil
}

// ValidateShapeType checks that value names a known shape type.
func ValidateShapeType(value string) error {
	if !domain.ShapeType(value).Valid() {
		valid := make([]string, len(domain.ShapeTypes))
		for i, t := range domain.ShapeTypes {
			valid[i] = string(t)
		}
		return fmt.Errorf("invalid shape type %q (want: %s)", value, joinComma(valid))
	}
	return nil
}

// ValidateCoord checks that a coordinate lies within the canvas bounds.
func ValidateCoord(name string, value float64) error {
	if value < domain.CanvasMin || value > domain.CanvasMax {
		return fmt.Errorf("%s must be %g-%g", name, domain.CanvasMin, domain.CanvasMax)
	}
	return nil
}

// ValidateSize checks a width/height value against the allowed size range.
func ValidateSize(name string, value float64) error {
	if value < domain.MinShapeSize || value > domain.MaxShapeSize {
		return fmt.Errorf("%s must be %g-%g", name, domain.MinShapeSize, domain.MaxShapeSize)
	}
	return nil
}

// ValidateRotation checks a rotation value in degrees.
func ValidateRotation(value float64) error {
	if value < 0 || value > 360 {
		return fmt.Errorf("rotation must be 0-360")
	}
	return nil
}

// ValidateOpacity checks an opacity value.
func ValidateOpacity(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("opacity must be 0-1")
	}
	return nil
}

// ValidateFontSize checks a text font size.
func ValidateFontSize(value float64) error {
	if value < domain.MinFontSize || value > domain.MaxFontSize {
		return fmt.Errorf("fontSize must be %g-%g", domain.MinFontSize, domain.MaxFontSize)
	}
	return nil
}

// ValidateHexColor checks that value is a six-digit hex color.
// An empty value is allowed (treated as "not set").
func ValidateHexColor(name, value string) error {
	if value == "" {
		return nil
	}
	if !hexColorRegex.MatchString(value) {
		return fmt.Errorf("invalid %s %q: must be a hex color like #4F46E5", name, value)
	}
	return nil
}

// ValidateAll returns the first non-nil error from the given list.
func ValidateAll(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
