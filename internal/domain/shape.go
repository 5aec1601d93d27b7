package domain

import "time"

// ShapeType enumerates the kinds of shapes a canvas can hold.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeLine      ShapeType = "line"
	ShapeText      ShapeType = "text"
	ShapeTriangle  ShapeType = "triangle"
	ShapeStar      ShapeType = "star"
	ShapeDiamond   ShapeType = "diamond"
	ShapeHexagon   ShapeType = "hexagon"
	ShapePentagon  ShapeType = "pentagon"
)

// ShapeTypes lists every valid shape type, in a stable order.
var ShapeTypes = []ShapeType{
	ShapeRectangle, ShapeCircle, ShapeLine, ShapeText, ShapeTriangle,
	ShapeStar, ShapeDiamond, ShapeHexagon, ShapePentagon,
}

// Valid reports whether t is one of the known shape types.
func (t ShapeType) Valid() bool {
	for _, st := range ShapeTypes {
		if t == st {
			return true
		}
	}
	return false
}

// Geometry and style bounds enforced on every shape write.
const (
	CanvasMin = 0.0
	CanvasMax = 30000.0

	MinShapeSize = 1.0
	MaxShapeSize = 10000.0

	MinFontSize = 8.0
	MaxFontSize = 400.0

	MaxTextLength = 1000

	// LockTTL is how long a soft lock stays fresh. A write by a
	// non-holder fails while the lock is younger than this; once the
	// lock is stale the writer steals it implicitly.
	LockTTL = 8 * time.Second
)

// DefaultFill is the fill color assigned when a create omits one.
const DefaultFill = "#4F46E5"

// DefaultTextFill is the fill color for text shapes created without one.
const DefaultTextFill = "#1F2937"

// DefaultFontSize is the font size for text shapes created without one.
const DefaultFontSize = 16.0

// Shape is one visual element on a canvas.
type Shape struct {
	ID       string    `json:"id"`
	Type     ShapeType `json:"type"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Rotation float64   `json:"rotation"`
	Opacity  float64   `json:"opacity"`
	Fill     string    `json:"fill"`

	// Text content and font size are meaningful for text shapes only.
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`

	ZIndex int `json:"zIndex"`

	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedBy string    `json:"lastModifiedBy"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`

	IsLocked bool      `json:"isLocked"`
	LockedBy string    `json:"lockedBy,omitempty"`
	LockedAt time.Time `json:"lockedAt,omitempty"`
}

// LockedAgainst reports whether the shape holds a fresh soft lock owned by
// someone other than userID at the given instant.
func (s *Shape) LockedAgainst(userID string, now time.Time) bool {
	if !s.IsLocked || s.LockedBy == "" || s.LockedBy == userID {
		return false
	}
	return now.Sub(s.LockedAt) < LockTTL
}

// DefaultSize returns the type-dependent default width and height.
func DefaultSize(t ShapeType) (w, h float64) {
	switch t {
	case ShapeRectangle:
		return 200, 150
	case ShapeCircle:
		return 120, 120
	case ShapeLine:
		return 200, 4
	case ShapeText:
		return 220, 40
	default:
		return 140, 140
	}
}

// Point is a canvas position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionUpdate names a shape and its new position, used for batched
// position-only writes.
type PositionUpdate struct {
	ShapeID string
	Pos     Point
}

// ShapePatch is a merge-update of shape fields. Nil fields are left
// untouched by the patch.
type ShapePatch struct {
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

// Apply merges the patch into s.
func (p ShapePatch) Apply(s *Shape) {
	if p.X != nil {
		s.X = *p.X
	}
	if p.Y != nil {
		s.Y = *p.Y
	}
	if p.Width != nil {
		s.Width = *p.Width
	}
	if p.Height != nil {
		s.Height = *p.Height
	}
	if p.Rotation != nil {
		s.Rotation = *p.Rotation
	}
	if p.Opacity != nil {
		s.Opacity = *p.Opacity
	}
	if p.Fill != nil {
		s.Fill = *p.Fill
	}
	if p.Text != nil {
		s.Text = *p.Text
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
}
