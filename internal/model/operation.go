package model

import "time"

// OperationType identifies the filesystem action an operation performed.
type OperationType string

// Operation type constants.
const (
	OperationMove   OperationType = "move"
	OperationCopy   OperationType = "copy"
	OperationDelete OperationType = "delete"
)

// Operation is one append-only log record describing a committed filesystem
// action. Operations are never deleted; undo only sets UndoneAt. The log is
// the sole source of truth for reversing state.
type Operation struct {
	CreatedAt   time.Time     `json:"created_at"`
	UndoneAt    *time.Time    `json:"undone_at,omitempty"`
	Confidence  *float64      `json:"confidence,omitempty"`
	BatchID     string        `json:"batch_id"`
	Type        OperationType `json:"type"`
	Source      string        `json:"source"`
	Destination string        `json:"destination,omitempty"`
	RuleName    string        `json:"rule_name,omitempty"`
	ID          int64         `json:"id"`
}

// Active reports whether the operation has not been undone.
func (o Operation) Active() bool {
	return o.UndoneAt == nil
}
