package domain

import (
	"context"
	"time"
)

// ShapeStore reads and writes shape records and canvas metadata in the
// shared document store.
type ShapeStore interface {
	// ListShapes returns all shapes on the canvas ordered by zIndex ascending.
	ListShapes(ctx context.Context, canvasID string) ([]Shape, error)

	// GetShape returns one shape, or ErrNotFound.
	GetShape(ctx context.Context, canvasID, shapeID string) (*Shape, error)

	// MaxZIndex returns the highest zIndex on the canvas, 0 when empty.
	MaxZIndex(ctx context.Context, canvasID string) (int, error)

	// CreateShape writes one fully-formed shape.
	CreateShape(ctx context.Context, canvasID string, s *Shape) error

	// PatchShape merge-updates a shape on behalf of userID. It fails with
	// ErrLockConflict while another user's soft lock is fresh, steals a
	// stale lock implicitly, and stamps lastModifiedBy/At.
	PatchShape(ctx context.Context, canvasID, shapeID, userID string, patch ShapePatch) (*Shape, error)

	// DeleteShapes removes the named shapes, tolerating missing IDs and
	// skipping shapes freshly locked by another user. Returns the IDs
	// actually deleted.
	DeleteShapes(ctx context.Context, canvasID, userID string, shapeIDs []string) ([]string, error)

	// BatchCreate commits all shapes plus the canvas lastUpdated timestamp
	// in a single atomic write. One batched commit amortizes per-write
	// latency to near-constant overhead regardless of N.
	BatchCreate(ctx context.Context, canvasID string, shapes []Shape) error

	// BatchPatchPositions applies position-only updates to many shapes in
	// one atomic write, skipping missing or lock-held shapes. Returns the
	// IDs actually moved, in input order.
	BatchPatchPositions(ctx context.Context, canvasID, userID string, moves []PositionUpdate) ([]string, error)

	// TouchCanvas bumps the canvas lastUpdated timestamp.
	TouchCanvas(ctx context.Context, canvasID string, t time.Time) error
}

// OperationStore persists per-user operation records and the
// last-operation pointer used by undo.
type OperationStore interface {
	PutOperation(ctx context.Context, op *Operation) error
	GetOperation(ctx context.Context, userID, operationID string) (*Operation, error)
	MarkUndone(ctx context.Context, userID, operationID string) error

	// LastOperationID returns the user's last-operation pointer, or "" if
	// none is set.
	LastOperationID(ctx context.Context, userID string) (string, error)
	SetLastOperation(ctx context.Context, userID, operationID string) error
	ClearLastOperation(ctx context.Context, userID string) error
}

// LLMProvider is the chat-completion-with-tools collaborator.
type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
}
