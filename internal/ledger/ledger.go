package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/ports"
)

// Ledger is the single choke point through which all state changes to
// tracked entities flow. Every mutation commits together with its audit
// record; a partial application (state changed but audit missing, or the
// reverse) cannot be observed because both writes share one transaction.
type Ledger struct {
	store      ports.LedgerStore
	logger     *logrus.Logger
	maxRetries int
	backoff    time.Duration
}

// Config tunes conflict retry behavior.
type Config struct {
	MaxRetries int
	Backoff    time.Duration
}

// New creates a Ledger over the given store.
func New(store ports.LedgerStore, logger *logrus.Logger, cfg Config) *Ledger {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 50 * time.Millisecond
	}
	return &Ledger{
		store:      store,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// CreateResult is returned by RecordCreate.
type CreateResult struct {
	EntityID string `json:"id"`
	AuditSeq int64  `json:"audit_seq"`
}

// RecordCreate allocates a new entity, persisting the entity row and a
// create audit record in one atomic transaction.
func (l *Ledger) RecordCreate(ctx context.Context, kind domain.EntityKind, initialFields domain.Fields, actor string) (*CreateResult, error) {
	if actor == "" {
		return nil, domain.NewValidationError("actor id is required")
	}

	fields, err := domain.ValidateCreate(kind, initialFields)
	if err != nil {
		return nil, err
	}

	entityID := uuid.NewString()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if err := tx.InsertEntity(ctx, kind, entityID, fields); err != nil {
		tx.Rollback()
		return nil, err
	}

	seq, _, err := tx.AppendAudit(ctx, &domain.AuditRecord{
		Actor:    actor,
		Action:   domain.AuditActionCreate,
		Kind:     kind,
		EntityID: entityID,
		Before:   nil,
		After:    fields,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"kind":      kind,
		"entity_id": entityID,
		"actor":     actor,
		"audit_seq": seq,
	}).Info("Entity created")

	return &CreateResult{EntityID: entityID, AuditSeq: seq}, nil
}

// RecordMutation applies a field change set to an existing entity. Within
// one transaction it locks the current row, computes the before snapshot
// from the changed field names, applies the changes and appends the audit
// record. Conflicts are retried a bounded number of times with backoff;
// every retry re-reads post-commit state, so no update is lost.
func (l *Ledger) RecordMutation(ctx context.Context, entityID string, changes domain.Fields, actor string, action domain.AuditAction) (int64, error) {
	if actor == "" {
		return 0, domain.NewValidationError("actor id is required")
	}
	if entityID == "" {
		return 0, domain.NewValidationError("entity id is required")
	}
	if !domain.IsValidMutationAction(action) {
		return 0, domain.NewValidationError("unknown action %q", action)
	}

	var seq int64
	var err error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			l.logger.WithFields(logrus.Fields{
				"entity_id": entityID,
				"attempt":   attempt,
			}).Warn("Retrying mutation after conflict")
			select {
			case <-time.After(l.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return 0, domain.NewStorageError(ctx.Err(), "mutation aborted: %v", ctx.Err())
			}
		}

		seq, err = l.applyMutation(ctx, entityID, changes, actor, action)
		if err == nil || !domain.IsKind(err, domain.ErrorKindConflict) {
			break
		}
	}
	if err != nil {
		return 0, err
	}

	l.logger.WithFields(logrus.Fields{
		"entity_id": entityID,
		"actor":     actor,
		"action":    action,
		"audit_seq": seq,
	}).Info("Entity mutated")

	return seq, nil
}

func (l *Ledger) applyMutation(ctx context.Context, entityID string, changes domain.Fields, actor string, action domain.AuditAction) (int64, error) {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return 0, err
	}

	seq, err := l.applyMutationTx(ctx, tx, entityID, changes, actor, action)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

func (l *Ledger) applyMutationTx(ctx context.Context, tx ports.LedgerTx, entityID string, changes domain.Fields, actor string, action domain.AuditAction) (int64, error) {
	kind, err := tx.LookupKind(ctx, entityID)
	if err != nil {
		return 0, err
	}

	normalized, err := domain.ValidateMutation(kind, changes)
	if err != nil {
		return 0, err
	}

	current, err := tx.GetForUpdate(ctx, kind, entityID)
	if err != nil {
		return 0, err
	}

	if err := checkStatusRules(kind, current, normalized); err != nil {
		return 0, err
	}

	// The before snapshot is scoped to the changed field names so the
	// per-entity chain links each record's after to the next one's before.
	before := make(domain.Fields, len(normalized))
	for name := range normalized {
		before[name] = current[name]
	}

	if err := tx.UpdateEntity(ctx, kind, entityID, normalized); err != nil {
		return 0, err
	}

	seq, _, err := tx.AppendAudit(ctx, &domain.AuditRecord{
		Actor:    actor,
		Action:   action,
		Kind:     kind,
		EntityID: entityID,
		Before:   before,
		After:    normalized,
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// checkStatusRules rejects mutations on terminal pallets and status
// changes outside the transition table.
func checkStatusRules(kind domain.EntityKind, current, changes domain.Fields) error {
	if kind != domain.KindPallet {
		return nil
	}

	currentStatus, _ := current["status"].(string)
	if domain.PalletStatus(currentStatus).IsTerminal() {
		return domain.NewTerminalStateError("pallet is %s and accepts no further mutation", currentStatus)
	}

	next, changing := changes["status"]
	if !changing {
		return nil
	}
	nextStatus, _ := next.(string)
	if !domain.PalletStatus(currentStatus).CanTransitionTo(domain.PalletStatus(nextStatus)) {
		return domain.NewValidationError("status cannot move from %s to %s", currentStatus, nextStatus)
	}
	return nil
}

// History returns the full audit chain for one entity ordered by
// ascending sequence id.
func (l *Ledger) History(ctx context.Context, entityID string) ([]domain.AuditRecord, error) {
	if entityID == "" {
		return nil, domain.NewValidationError("entity id is required")
	}

	records, err := l.store.History(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		// Every entity has at least its create record; an empty chain
		// means the entity does not exist.
		if _, err := l.store.GetEntity(ctx, entityID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// GetEntity reads one entity.
func (l *Ledger) GetEntity(ctx context.Context, entityID string) (*domain.TrackedEntity, error) {
	if entityID == "" {
		return nil, domain.NewValidationError("entity id is required")
	}
	return l.store.GetEntity(ctx, entityID)
}

// ListEntities reads a page of entities of one kind.
func (l *Ledger) ListEntities(ctx context.Context, kind domain.EntityKind, limit, offset int) ([]*domain.TrackedEntity, int, error) {
	if !domain.IsValidKind(kind) {
		return nil, 0, domain.NewValidationError("unknown entity kind %q", kind)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return l.store.ListEntities(ctx, kind, limit, offset)
}

// ReconcileShipment compares a shipment's declared pallet and box counts
// against the entities currently linked to it. Pure read-side computation;
// no state is mutated and no audit records are written.
func (l *Ledger) ReconcileShipment(ctx context.Context, shipmentID string) (*domain.ReconciliationResult, error) {
	if shipmentID == "" {
		return nil, domain.NewValidationError("shipment id is required")
	}

	shipment, err := l.store.GetEntity(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Kind != domain.KindShipment {
		return nil, domain.NewNotFoundError("entity %s is not a shipment", shipmentID)
	}

	result := &domain.ReconciliationResult{
		ShipmentID: shipment.ID,
		Balanced:   true,
	}
	if code, ok := shipment.Fields["code"].(string); ok {
		result.Code = code
	}

	for _, item := range []struct {
		kind     domain.EntityKind
		expected string
	}{
		{domain.KindPallet, "expected_pallets"},
		{domain.KindBox, "expected_boxes"},
	} {
		received, err := l.store.CountLinked(ctx, item.kind, "shipment_id", shipment.ID)
		if err != nil {
			return nil, err
		}

		expected := fieldInt(shipment.Fields, item.expected)
		delta := received - expected
		if delta != 0 {
			result.Balanced = false
		}
		result.Items = append(result.Items, domain.ReconciliationItem{
			Kind:     item.kind,
			Expected: expected,
			Received: received,
			Delta:    delta,
		})
	}

	return result, nil
}

func fieldInt(fields domain.Fields, name string) int64 {
	switch v := fields[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
