package ports

import (
	"context"
	"time"

	"github.com/stocktrail/stocktrail/internal/domain"
)

// LedgerTx is one transactional unit of work against the durable store.
// The entity write and the audit append either both commit or both roll
// back; the store itself applies no business logic.
type LedgerTx interface {
	// LookupKind resolves an entity id to its kind via the entity directory.
	LookupKind(ctx context.Context, entityID string) (domain.EntityKind, error)

	// GetForUpdate reads the current field values of an entity and holds a
	// row-level lock on it until the transaction ends.
	GetForUpdate(ctx context.Context, kind domain.EntityKind, entityID string) (domain.Fields, error)

	// InsertEntity persists a new entity row and its directory entry.
	InsertEntity(ctx context.Context, kind domain.EntityKind, entityID string, fields domain.Fields) error

	// UpdateEntity applies field changes to an existing entity row.
	UpdateEntity(ctx context.Context, kind domain.EntityKind, entityID string, changes domain.Fields) error

	// AppendAudit appends an audit record, returning the store-assigned
	// sequence id and commit-side timestamp.
	AppendAudit(ctx context.Context, record *domain.AuditRecord) (int64, time.Time, error)

	Commit() error
	Rollback() error
}

// LedgerStore is the persistence boundary of the audited mutation ledger.
type LedgerStore interface {
	Begin(ctx context.Context) (LedgerTx, error)

	// History returns the audit records for one entity ordered by
	// ascending sequence id.
	History(ctx context.Context, entityID string) ([]domain.AuditRecord, error)

	// GetEntity reads one entity without locking it.
	GetEntity(ctx context.Context, entityID string) (*domain.TrackedEntity, error)

	// ListEntities reads a page of entities of one kind ordered by
	// creation time, newest first, plus the total count.
	ListEntities(ctx context.Context, kind domain.EntityKind, limit, offset int) ([]*domain.TrackedEntity, int, error)

	// CountLinked counts entities of a kind whose refField points at entityID.
	CountLinked(ctx context.Context, kind domain.EntityKind, refField, entityID string) (int64, error)
}
