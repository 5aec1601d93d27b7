package domain

import (
	"encoding/json"
	"time"
)

// Reversibility tags a recorded tool call with whether undo can reverse it.
type Reversibility string

const (
	// Reversible calls carry enough information to be undone: the shapes
	// they created can simply be deleted.
	Reversible Reversibility = "reversible"
	// Irreversible calls cannot be undone because no prior-state snapshot
	// is captured at mutation time. Undo logs and skips them.
	Irreversible Reversibility = "irreversible"
)

// ToolCallRecord is one executed tool call inside an Operation.
type ToolCallRecord struct {
	FunctionName     string          `json:"functionName"`
	Params           json.RawMessage `json:"params"`
	AffectedShapeIDs []string        `json:"affectedShapeIds"`
	Reversibility    Reversibility   `json:"reversibility"`
}

// Operation is the audit/undo record of one conversational turn. It groups
// every tool call the model executed in that turn.
type Operation struct {
	ID        string    `json:"operationId"`
	UserID    string    `json:"userId"`
	CanvasID  string    `json:"canvasId"`
	Timestamp time.Time `json:"timestamp"`
	// Reversible marks the operation as a valid undo target: at least one
	// of its calls mutated canvas state. Undo still only restores what the
	// per-call Reversibility tags allow.
	Reversible bool             `json:"reversible"`
	Undone     bool             `json:"undone"`
	ToolCalls  []ToolCallRecord `json:"toolCalls"`
}

// AffectedShapeIDs returns the union of shape IDs touched by the operation,
// deduplicated in first-seen order.
func (o *Operation) AffectedShapeIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, tc := range o.ToolCalls {
		for _, id := range tc.AffectedShapeIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
