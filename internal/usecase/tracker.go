package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"canvas-copilot/internal/domain"
)

// reversibleFunctions are the tool calls undo can reverse: their affected
// shapes were created by the call and can simply be deleted again.
var reversibleFunctions = map[string]bool{
	"create_shape":         true,
	"bulk_create":          true,
	"create_from_template": true,
}

// mutatingFunctions are the tool calls that change canvas state. A turn
// containing at least one successful mutation can be targeted by undo, even
// when none of its calls can be reversed; undo then removes nothing and
// says so. Read-only and undo turns stay non-undoable.
var mutatingFunctions = map[string]bool{
	"create_shape":         true,
	"update_shape":         true,
	"move_shape":           true,
	"delete_shape":         true,
	"layout_arrange":       true,
	"create_from_template": true,
	"bulk_create":          true,
	"bulk_update":          true,
}

// IDGenerator mints operation record IDs.
type IDGenerator interface {
	OperationID() string
}

// Tracker records the tool calls executed during one conversational turn
// as an Operation, the unit of undo.
type Tracker struct {
	ops    domain.OperationStore
	ids    IDGenerator
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates an operation tracker.
func NewTracker(ops domain.OperationStore, ids IDGenerator, logger *slog.Logger) *Tracker {
	return &Tracker{ops: ops, ids: ids, logger: logger, now: time.Now}
}

// executedCall pairs a model tool call with its result.
type executedCall struct {
	Call   domain.ToolCall
	Result *domain.ToolResult
}

// Record persists an Operation for the executed calls and points the
// user's last-operation pointer at it. Turns with zero calls record
// nothing and return "".
func (t *Tracker) Record(ctx context.Context, userID, canvasID string, calls []executedCall) (string, error) {
	if len(calls) == 0 {
		return "", nil
	}

	records := make([]domain.ToolCallRecord, 0, len(calls))
	undoable := false
	for _, ec := range calls {
		if mutatingFunctions[ec.Call.Name] && !ec.Result.IsError {
			undoable = true
		}
		rev := domain.Irreversible
		if reversibleFunctions[ec.Call.Name] && !ec.Result.IsError {
			rev = domain.Reversible
		}
		records = append(records, domain.ToolCallRecord{
			FunctionName:     ec.Call.Name,
			Params:           ec.Call.Arguments,
			AffectedShapeIDs: affectedIDs(ec),
			Reversibility:    rev,
		})
	}

	op := &domain.Operation{
		ID:         t.ids.OperationID(),
		UserID:     userID,
		CanvasID:   canvasID,
		Timestamp:  t.now(),
		Reversible: undoable,
		ToolCalls:  records,
	}

	if err := t.ops.PutOperation(ctx, op); err != nil {
		return "", err
	}
	if err := t.ops.SetLastOperation(ctx, userID, op.ID); err != nil {
		return "", err
	}

	t.logger.Debug("operation recorded",
		"operation", op.ID, "user", userID, "tool_calls", len(records))
	return op.ID, nil
}

// affectedIDs derives the shape IDs a call touched: the structured IDs the
// handler reported, unioned with any shapeId/shapeIds named in the call's
// input arguments, deduplicated in first-seen order.
func affectedIDs(ec executedCall) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, id := range ec.Result.AffectedIDs {
		add(id)
	}

	var args struct {
		ShapeID  string   `json:"shapeId"`
		ShapeIDs []string `json:"shapeIds"`
	}
	if err := json.Unmarshal(ec.Call.Arguments, &args); err == nil {
		add(args.ShapeID)
		for _, id := range args.ShapeIDs {
			add(id)
		}
	}
	return ids
}
