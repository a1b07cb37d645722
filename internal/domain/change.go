package domain

type ChangeKind string

const (
	ChangeKindCreated ChangeKind = "created"
	ChangeKindUpdated ChangeKind = "updated"
	ChangeKindDeleted ChangeKind = "deleted"
)

// Change is published on the change feed after a store mutation commits.
// For deletions, Event carries the last committed state of the record.
type Change struct {
	Kind  ChangeKind
	Event Event
}
