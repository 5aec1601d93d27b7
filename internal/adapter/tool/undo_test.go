package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"canvas-copilot/internal/domain"
)

func recordOperation(t *testing.T, store *memStore, userID, opID string, reversible bool, calls ...domain.ToolCallRecord) {
	t.Helper()
	op := &domain.Operation{
		ID:         opID,
		UserID:     userID,
		CanvasID:   domain.DefaultCanvasID,
		Timestamp:  time.Now(),
		Reversible: reversible,
		ToolCalls:  calls,
	}
	if err := store.PutOperation(context.Background(), op); err != nil {
		t.Fatal(err)
	}
	if err := store.SetLastOperation(context.Background(), userID, opID); err != nil {
		t.Fatal(err)
	}
}

func TestUndoRemovesCreatedShapes(t *testing.T) {
	store := newMemStore()
	seedShape(t, store, "shape-keep", 1)
	seedShape(t, store, "shape-a", 2)
	seedShape(t, store, "shape-b", 3)
	seedShape(t, store, "shape-c", 4)

	recordOperation(t, store, "user-1", "op-1", true, domain.ToolCallRecord{
		FunctionName:     "bulk_create",
		AffectedShapeIDs: []string{"shape-a", "shape-b", "shape-c"},
		Reversibility:    domain.Reversible,
	})

	ut := NewUndoTool(store, store, testLogger(t))
	res, err := ut.Execute(testCtx("user-1"), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", res.Content)
	}
	if !strings.Contains(res.Content, "removed 3 shape(s)") {
		t.Errorf("content = %q", res.Content)
	}

	// exactly the recorded shapes are gone; everything else survives
	shapes, _ := store.ListShapes(context.Background(), domain.DefaultCanvasID)
	if len(shapes) != 1 || shapes[0].ID != "shape-keep" {
		t.Errorf("shapes after undo = %+v", shapes)
	}

	op, _ := store.GetOperation(context.Background(), "user-1", "op-1")
	if !op.Undone {
		t.Error("operation not marked undone")
	}
	last, _ := store.LastOperationID(context.Background(), "user-1")
	if last != "" {
		t.Errorf("last-operation pointer not cleared: %q", last)
	}
}

func TestUndoTwiceFails(t *testing.T) {
	store := newMemStore()
	seedShape(t, store, "shape-a", 1)
	recordOperation(t, store, "user-1", "op-1", true, domain.ToolCallRecord{
		FunctionName:     "create_shape",
		AffectedShapeIDs: []string{"shape-a"},
		Reversibility:    domain.Reversible,
	})

	ut := NewUndoTool(store, store, testLogger(t))
	res, _ := ut.Execute(testCtx("user-1"), json.RawMessage(`{"operationId":"op-1"}`))
	if res.IsError {
		t.Fatalf("first undo failed: %s", res.Content)
	}

	res, _ = ut.Execute(testCtx("user-1"), json.RawMessage(`{"operationId":"op-1"}`))
	if !res.IsError {
		t.Fatal("second undo of the same operation should fail")
	}
}

func TestUndoIrreversibleCallsRestoreNothing(t *testing.T) {
	store := newMemStore()
	seedShape(t, store, "shape-a", 1)

	// a turn that only moved/updated shapes: nothing can be restored
	recordOperation(t, store, "user-1", "op-1", true, domain.ToolCallRecord{
		FunctionName:     "update_shape",
		AffectedShapeIDs: []string{"shape-a"},
		Reversibility:    domain.Irreversible,
	})

	ut := NewUndoTool(store, store, testLogger(t))
	res, _ := ut.Execute(testCtx("user-1"), json.RawMessage(`{}`))
	if res.IsError {
		t.Fatalf("error result: %s", res.Content)
	}
	if !strings.Contains(res.Content, "removed 0 shape(s)") {
		t.Errorf("content = %q, want zero removals", res.Content)
	}

	// the updated shape is untouched by undo
	if _, err := store.GetShape(context.Background(), domain.DefaultCanvasID, "shape-a"); err != nil {
		t.Errorf("shape-a was deleted by undo of an update: %v", err)
	}
}

func TestUndoReversesInReverseOrder(t *testing.T) {
	store := newMemStore()
	seedShape(t, store, "shape-a", 1)
	seedShape(t, store, "shape-b", 2)

	var deleteOrder []string
	// wrap: record deletions via a second undo run over two calls
	recordOperation(t, store, "user-1", "op-1", true,
		domain.ToolCallRecord{FunctionName: "create_shape", AffectedShapeIDs: []string{"shape-a"}, Reversibility: domain.Reversible},
		domain.ToolCallRecord{FunctionName: "create_shape", AffectedShapeIDs: []string{"shape-b"}, Reversibility: domain.Reversible},
	)

	ut := NewUndoTool(&orderRecordingStore{memStore: store, order: &deleteOrder}, store, testLogger(t))
	res, _ := ut.Execute(testCtx("user-1"), json.RawMessage(`{}`))
	if res.IsError {
		t.Fatalf("error result: %s", res.Content)
	}
	if len(deleteOrder) != 2 || deleteOrder[0] != "shape-b" || deleteOrder[1] != "shape-a" {
		t.Errorf("delete order = %v, want newest-first", deleteOrder)
	}
}

func TestUndoNothingRecorded(t *testing.T) {
	store := newMemStore()
	ut := NewUndoTool(store, store, testLogger(t))

	res, _ := ut.Execute(testCtx("user-1"), json.RawMessage(`{}`))
	if !res.IsError {
		t.Fatal("expected error result when no operation is recorded")
	}
}

// orderRecordingStore records the order of DeleteShapes calls.
type orderRecordingStore struct {
	*memStore
	order *[]string
}

func (o *orderRecordingStore) DeleteShapes(ctx context.Context, canvasID, userID string, shapeIDs []string) ([]string, error) {
	*o.order = append(*o.order, shapeIDs...)
	return o.memStore.DeleteShapes(ctx, canvasID, userID, shapeIDs)
}
