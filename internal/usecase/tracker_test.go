package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"canvas-copilot/internal/adapter/tool"
	"canvas-copilot/internal/domain"
)

// fakeShapes records deletions; everything else is inert.
type fakeShapes struct {
	deleted [][]string
}

func (f *fakeShapes) ListShapes(context.Context, string) ([]domain.Shape, error) { return nil, nil }
func (f *fakeShapes) GetShape(context.Context, string, string) (*domain.Shape, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeShapes) MaxZIndex(context.Context, string) (int, error) { return 0, nil }

func (f *fakeShapes) CreateShape(context.Context, string, *domain.Shape) error { return nil }
func (f *fakeShapes) PatchShape(context.Context, string, string, string, domain.ShapePatch) (*domain.Shape, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeShapes) DeleteShapes(_ context.Context, _ string, _ string, ids []string) ([]string, error) {
	f.deleted = append(f.deleted, ids)
	return ids, nil
}
func (f *fakeShapes) BatchCreate(context.Context, string, []domain.Shape) error { return nil }
func (f *fakeShapes) BatchPatchPositions(context.Context, string, string, []domain.PositionUpdate) ([]string, error) {
	return nil, nil
}
func (f *fakeShapes) TouchCanvas(context.Context, string, time.Time) error { return nil }

func TestRecordZeroCalls(t *testing.T) {
	tr := NewTracker(newFakeOps(), &seqIDs{}, discardLogger())
	id, err := tr.Record(context.Background(), "user-1", "default", nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty for zero calls", id)
	}
}

func TestRecordSetsLastOperationPointer(t *testing.T) {
	ops := newFakeOps()
	tr := NewTracker(ops, &seqIDs{}, discardLogger())

	id, err := tr.Record(context.Background(), "user-1", "default", []executedCall{{
		Call:   domain.ToolCall{Name: "create_shape", Arguments: json.RawMessage(`{"type":"circle"}`)},
		Result: &domain.ToolResult{AffectedIDs: []string{"shape-1"}},
	}})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	last, _ := ops.LastOperationID(context.Background(), "user-1")
	if last != id {
		t.Errorf("last pointer = %q, want %q", last, id)
	}
}

func TestAffectedIDsUnionsResultAndParams(t *testing.T) {
	ec := executedCall{
		Call: domain.ToolCall{
			Name:      "bulk_update",
			Arguments: json.RawMessage(`{"shapeIds":["shape-2","shape-1","shape-3"]}`),
		},
		Result: &domain.ToolResult{AffectedIDs: []string{"shape-1", "shape-2"}},
	}
	got := affectedIDs(ec)
	want := []string{"shape-1", "shape-2", "shape-3"}
	if len(got) != len(want) {
		t.Fatalf("affectedIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("affectedIDs = %v, want %v", got, want)
		}
	}
}

func TestUndoAfterUpdateOnlyTurnRemovesNothing(t *testing.T) {
	ops := newFakeOps()
	tr := NewTracker(ops, &seqIDs{}, discardLogger())

	opID, err := tr.Record(context.Background(), "user-1", domain.DefaultCanvasID, []executedCall{{
		Call: domain.ToolCall{
			Name:      "update_shape",
			Arguments: json.RawMessage(`{"shapeId":"shape-7","fill":"#FF0000"}`),
		},
		Result: &domain.ToolResult{Content: "Updated rectangle shape-7", AffectedIDs: []string{"shape-7"}},
	}})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	op, err := ops.GetOperation(context.Background(), "user-1", opID)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if !op.Reversible {
		t.Fatal("update-only turn must still be a valid undo target")
	}
	if op.ToolCalls[0].Reversibility != domain.Irreversible {
		t.Error("update call must be tagged irreversible")
	}

	shapes := &fakeShapes{}
	undo := tool.NewUndoTool(shapes, ops, discardLogger())
	ctx := domain.ContextWithUserID(context.Background(), "user-1")
	res, err := undo.Execute(ctx, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if res.IsError {
		t.Fatalf("undo of an update-only turn must succeed, got %q", res.Content)
	}
	if !strings.Contains(res.Content, "removed 0 shape(s)") {
		t.Errorf("undo must report zero removals, got %q", res.Content)
	}
	if len(shapes.deleted) != 0 {
		t.Errorf("undo deleted shapes for an update-only turn: %v", shapes.deleted)
	}

	op, _ = ops.GetOperation(context.Background(), "user-1", opID)
	if !op.Undone {
		t.Error("operation must be marked undone")
	}
}

func TestRecordReadOnlyTurnNotUndoable(t *testing.T) {
	ops := newFakeOps()
	tr := NewTracker(ops, &seqIDs{}, discardLogger())

	opID, err := tr.Record(context.Background(), "user-1", domain.DefaultCanvasID, []executedCall{{
		Call:   domain.ToolCall{Name: "query_canvas", Arguments: json.RawMessage(`{}`)},
		Result: &domain.ToolResult{Content: "The canvas is currently empty."},
	}})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	op, _ := ops.GetOperation(context.Background(), "user-1", opID)
	if op.Reversible {
		t.Fatal("read-only turn must not be an undo target")
	}

	undo := tool.NewUndoTool(&fakeShapes{}, ops, discardLogger())
	ctx := domain.ContextWithUserID(context.Background(), "user-1")
	res, err := undo.Execute(ctx, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "cannot be reversed") {
		t.Errorf("undo of a read-only turn should report irreversibility, got %q", res.Content)
	}
}

func TestRecordFailedCreateIsIrreversible(t *testing.T) {
	ops := newFakeOps()
	tr := NewTracker(ops, &seqIDs{}, discardLogger())

	id, err := tr.Record(context.Background(), "user-1", "default", []executedCall{{
		Call:   domain.ToolCall{Name: "create_shape", Arguments: json.RawMessage(`{}`)},
		Result: &domain.ToolResult{IsError: true, Content: "Error: type is required"},
	}})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	op, err := ops.GetOperation(context.Background(), "user-1", id)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if op.Reversible {
		t.Error("operation with only failed creations must not be reversible")
	}
	if op.ToolCalls[0].Reversibility != domain.Irreversible {
		t.Error("failed create must be tagged irreversible")
	}
}
