package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-copilot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "canvas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testShape(id string, z int) *domain.Shape {
	now := time.Now().UTC()
	return &domain.Shape{
		ID:             id,
		Type:           domain.ShapeRectangle,
		X:              100,
		Y:              200,
		Width:          200,
		Height:         150,
		Opacity:        1,
		Fill:           domain.DefaultFill,
		ZIndex:         z,
		CreatedBy:      "user-1",
		CreatedAt:      now,
		LastModifiedBy: "user-1",
		LastModifiedAt: now,
	}
}

func TestCreateAndGetShape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sh := testShape("shape-1", 1)
	require.NoError(t, s.CreateShape(ctx, "default", sh))

	got, err := s.GetShape(ctx, "default", "shape-1")
	require.NoError(t, err)
	assert.Equal(t, sh.ID, got.ID)
	assert.Equal(t, domain.ShapeRectangle, got.Type)
	assert.Equal(t, 100.0, got.X)
	assert.Equal(t, domain.DefaultFill, got.Fill)
	assert.Equal(t, "user-1", got.CreatedBy)
	assert.False(t, got.IsLocked)
}

func TestGetShapeNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetShape(context.Background(), "default", "shape-missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListShapesOrderedByZIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-c", 3)))
	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-a", 1)))
	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-b", 2)))

	shapes, err := s.ListShapes(ctx, "default")
	require.NoError(t, err)
	require.Len(t, shapes, 3)
	assert.Equal(t, "shape-a", shapes[0].ID)
	assert.Equal(t, "shape-b", shapes[1].ID)
	assert.Equal(t, "shape-c", shapes[2].ID)
}

func TestListShapesIsolatesCanvases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateShape(ctx, "canvas-a", testShape("shape-1", 1)))
	require.NoError(t, s.CreateShape(ctx, "canvas-b", testShape("shape-2", 1)))

	shapes, err := s.ListShapes(ctx, "canvas-a")
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, "shape-1", shapes[0].ID)
}

func TestMaxZIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	z, err := s.MaxZIndex(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 0, z)

	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-1", 7)))
	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-2", 3)))

	z, err = s.MaxZIndex(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 7, z)
}

func TestPatchShapeMergesAndStamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-1", 1)))

	newX := 500.0
	newFill := "#FF0000"
	got, err := s.PatchShape(ctx, "default", "shape-1", "user-2", domain.ShapePatch{X: &newX, Fill: &newFill})
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.X)
	assert.Equal(t, 200.0, got.Y) // untouched
	assert.Equal(t, "#FF0000", got.Fill)
	assert.Equal(t, "user-2", got.LastModifiedBy)
	assert.True(t, got.LastModifiedAt.Equal(fixed))

	// modification persisted
	stored, err := s.GetShape(ctx, "default", "shape-1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, stored.X)
	assert.Equal(t, "user-2", stored.LastModifiedBy)
}

func TestPatchShapeNotFound(t *testing.T) {
	s := newTestStore(t)

	x := 1.0
	_, err := s.PatchShape(context.Background(), "default", "shape-missing", "user-1", domain.ShapePatch{X: &x})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPatchShapeFreshLockConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sh := testShape("shape-1", 1)
	sh.IsLocked = true
	sh.LockedBy = "user-other"
	sh.LockedAt = base
	require.NoError(t, s.CreateShape(ctx, "default", sh))

	// 3s into an 8s lock: conflict
	s.now = func() time.Time { return base.Add(3 * time.Second) }
	x := 1.0
	_, err := s.PatchShape(ctx, "default", "shape-1", "user-1", domain.ShapePatch{X: &x})
	assert.True(t, errors.Is(err, domain.ErrLockConflict))

	// lock holder writes through their own lock
	_, err = s.PatchShape(ctx, "default", "shape-1", "user-other", domain.ShapePatch{X: &x})
	assert.NoError(t, err)
}

func TestPatchShapeStealsStaleLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sh := testShape("shape-1", 1)
	sh.IsLocked = true
	sh.LockedBy = "user-other"
	sh.LockedAt = base
	require.NoError(t, s.CreateShape(ctx, "default", sh))

	s.now = func() time.Time { return base.Add(domain.LockTTL) }
	x := 42.0
	got, err := s.PatchShape(ctx, "default", "shape-1", "user-1", domain.ShapePatch{X: &x})
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.X)
	assert.False(t, got.IsLocked)
	assert.Empty(t, got.LockedBy)
}

func TestDeleteShapesTolerant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-1", 1)))
	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-2", 2)))

	locked := testShape("shape-locked", 3)
	locked.IsLocked = true
	locked.LockedBy = "user-other"
	locked.LockedAt = base
	require.NoError(t, s.CreateShape(ctx, "default", locked))

	deleted, err := s.DeleteShapes(ctx, "default", "user-1",
		[]string{"shape-1", "shape-missing", "shape-locked", "shape-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"shape-1", "shape-2"}, deleted)

	remaining, err := s.ListShapes(ctx, "default")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "shape-locked", remaining[0].ID)
}

func TestBatchCreateAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	shapes := []domain.Shape{*testShape("shape-1", 1), *testShape("shape-2", 2), *testShape("shape-3", 3)}
	require.NoError(t, s.BatchCreate(ctx, "default", shapes))

	got, err := s.ListShapes(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	ts, err := s.CanvasLastUpdated(ctx, "default")
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestBatchCreateDuplicateIDRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	shapes := []domain.Shape{*testShape("shape-1", 1), *testShape("shape-1", 2)}
	err := s.BatchCreate(ctx, "default", shapes)
	require.Error(t, err)

	got, err := s.ListShapes(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBatchPatchPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-1", 1)))
	require.NoError(t, s.CreateShape(ctx, "default", testShape("shape-2", 2)))

	locked := testShape("shape-locked", 3)
	locked.IsLocked = true
	locked.LockedBy = "user-other"
	locked.LockedAt = base
	require.NoError(t, s.CreateShape(ctx, "default", locked))

	moved, err := s.BatchPatchPositions(ctx, "default", "user-1", []domain.PositionUpdate{
		{ShapeID: "shape-2", Pos: domain.Point{X: 10, Y: 20}},
		{ShapeID: "shape-missing", Pos: domain.Point{X: 0, Y: 0}},
		{ShapeID: "shape-locked", Pos: domain.Point{X: 5, Y: 5}},
		{ShapeID: "shape-1", Pos: domain.Point{X: 30, Y: 40}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"shape-2", "shape-1"}, moved)

	got, err := s.GetShape(ctx, "default", "shape-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.X)
	assert.Equal(t, 40.0, got.Y)
	assert.Equal(t, "user-1", got.LastModifiedBy)

	untouched, err := s.GetShape(ctx, "default", "shape-locked")
	require.NoError(t, err)
	assert.Equal(t, 100.0, untouched.X)
}

func TestOperationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := &domain.Operation{
		ID:         "op-01ABC",
		UserID:     "user-1",
		CanvasID:   "default",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Reversible: true,
		ToolCalls: []domain.ToolCallRecord{
			{
				FunctionName:     "create_shape",
				Params:           json.RawMessage(`{"type":"rectangle"}`),
				AffectedShapeIDs: []string{"shape-1"},
				Reversibility:    domain.Reversible,
			},
		},
	}
	require.NoError(t, s.PutOperation(ctx, op))

	got, err := s.GetOperation(ctx, "user-1", "op-01ABC")
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)
	assert.Equal(t, "default", got.CanvasID)
	assert.True(t, got.Reversible)
	assert.False(t, got.Undone)
	require.Len(t, got.ToolCalls, 1)
	assert.Equal(t, "create_shape", got.ToolCalls[0].FunctionName)
	assert.Equal(t, []string{"shape-1"}, got.ToolCalls[0].AffectedShapeIDs)

	// operations are scoped to their owner
	_, err = s.GetOperation(ctx, "user-2", "op-01ABC")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMarkUndone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	op := &domain.Operation{ID: "op-1", UserID: "user-1", CanvasID: "default", Timestamp: time.Now(), Reversible: true}
	require.NoError(t, s.PutOperation(ctx, op))

	require.NoError(t, s.MarkUndone(ctx, "user-1", "op-1"))

	got, err := s.GetOperation(ctx, "user-1", "op-1")
	require.NoError(t, err)
	assert.True(t, got.Undone)

	err = s.MarkUndone(ctx, "user-1", "op-nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLastOperationPointer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.LastOperationID(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SetLastOperation(ctx, "user-1", "op-1"))
	require.NoError(t, s.SetLastOperation(ctx, "user-1", "op-2"))

	id, err = s.LastOperationID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "op-2", id)

	require.NoError(t, s.ClearLastOperation(ctx, "user-1"))
	id, err = s.LastOperationID(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, id)
}
