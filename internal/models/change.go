package models

// ChangeOp is the kind of row change reported by the change feed.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// ChangeEvent is delivered whenever the Chat table changes. The payload is advisory:
// consumers refetch the full table instead of applying it.
type ChangeEvent struct {
	Op    ChangeOp `json:"op"`
	Table string   `json:"table"`
	ID    int64    `json:"id"`
}
