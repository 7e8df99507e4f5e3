package domain

import "time"

// AuditAction tags the kind of state change an audit record describes.
type AuditAction string

const (
	AuditActionCreate       AuditAction = "create"
	AuditActionUpdate       AuditAction = "update"
	AuditActionMove         AuditAction = "move"
	AuditActionStatusChange AuditAction = "statuschange"
)

// IsValidMutationAction reports whether a is a recognized non-create action.
func IsValidMutationAction(a AuditAction) bool {
	switch a {
	case AuditActionUpdate, AuditActionMove, AuditActionStatusChange:
		return true
	default:
		return false
	}
}

// AuditRecord is one append-only entry in an entity's audit chain.
// Seq is assigned by the store at commit time and is strictly increasing;
// Before is nil for create records. Records are never mutated or deleted.
type AuditRecord struct {
	Seq      int64       `json:"seq"`
	TS       time.Time   `json:"ts"`
	Actor    string      `json:"actor"`
	Action   AuditAction `json:"action"`
	Kind     EntityKind  `json:"kind"`
	EntityID string      `json:"entity_id"`
	Before   Fields      `json:"before,omitempty"`
	After    Fields      `json:"after"`
}
