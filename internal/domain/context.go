package domain

import "context"

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	canvasIDKey contextKey = "canvas_id"
)

// DefaultCanvasID is used when a request does not name a canvas.
const DefaultCanvasID = "default"

// ContextWithUserID returns a context carrying the authenticated user ID.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the user ID, or "" if absent.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithCanvasID returns a context carrying the target canvas ID.
func ContextWithCanvasID(ctx context.Context, canvasID string) context.Context {
	return context.WithValue(ctx, canvasIDKey, canvasID)
}

// CanvasIDFromContext extracts the canvas ID, defaulting when absent.
func CanvasIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(canvasIDKey).(string); ok && v != "" {
		return v
	}
	return DefaultCanvasID
}
