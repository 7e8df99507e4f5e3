package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/stocktrail/stocktrail/internal/domain"
	"github.com/stocktrail/stocktrail/internal/ports"
)

// PostgresLedgerStore implements LedgerStore using PostgreSQL. Table and
// column names are taken from the kind registry, never from request input;
// all values travel as query parameters.
type PostgresLedgerStore struct {
	db *sql.DB
}

// NewPostgresLedgerStore creates a new PostgreSQL ledger store.
func NewPostgresLedgerStore(db *sql.DB) ports.LedgerStore {
	return &PostgresLedgerStore{db: db}
}

// Begin opens a read-committed transaction. Row locks acquired through
// GetForUpdate serialize concurrent mutations of the same entity.
func (s *PostgresLedgerStore) Begin(ctx context.Context) (ports.LedgerTx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapSQLError(err, "begin transaction")
	}
	return &ledgerTx{tx: tx}, nil
}

type ledgerTx struct {
	tx *sql.Tx
}

// LookupKind resolves an entity id through the entity directory.
func (t *ledgerTx) LookupKind(ctx context.Context, entityID string) (domain.EntityKind, error) {
	return lookupKind(ctx, t.tx, entityID)
}

// GetForUpdate reads the entity's current fields under a row-level lock.
func (t *ledgerTx) GetForUpdate(ctx context.Context, kind domain.EntityKind, entityID string) (domain.Fields, error) {
	fields, _, _, err := scanEntityRow(ctx, t.tx, kind, entityID, true)
	return fields, err
}

// InsertEntity persists the directory entry and the kind table row.
func (t *ledgerTx) InsertEntity(ctx context.Context, kind domain.EntityKind, entityID string, fields domain.Fields) error {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return domain.NewValidationError("unknown entity kind %q", kind)
	}

	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO entities (id, kind) VALUES ($1, $2)`,
		entityID, string(kind),
	); err != nil {
		return mapSQLError(err, "insert entity directory row")
	}

	names := domain.FieldNames(kind)
	columns := []string{"id"}
	placeholders := []string{"$1"}
	args := []interface{}{entityID}
	for _, name := range names {
		columns = append(columns, name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, fields[name])
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		spec.Table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return mapSQLError(err, "insert entity")
	}
	return nil
}

// UpdateEntity applies field changes to the kind table row.
func (t *ledgerTx) UpdateEntity(ctx context.Context, kind domain.EntityKind, entityID string, changes domain.Fields) error {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return domain.NewValidationError("unknown entity kind %q", kind)
	}

	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make([]string, 0, len(names)+1)
	args := []interface{}{entityID}
	for _, name := range names {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", name, len(args)+1))
		args = append(args, changes[name])
	}
	assignments = append(assignments, "updated_at = now()")

	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE id = $1`,
		spec.Table,
		strings.Join(assignments, ", "),
	)

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapSQLError(err, "update entity")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapSQLError(err, "get rows affected")
	}
	if rowsAffected == 0 {
		return domain.NewNotFoundError("entity %s not found", entityID)
	}
	return nil
}

// AppendAudit appends one audit record. The sequence id comes from the
// table's bigserial and the timestamp is assigned here, at commit side,
// not at submission.
func (t *ledgerTx) AppendAudit(ctx context.Context, record *domain.AuditRecord) (int64, time.Time, error) {
	var before interface{}
	if record.Before != nil {
		data, err := json.Marshal(record.Before)
		if err != nil {
			return 0, time.Time{}, domain.NewStorageError(err, "failed to marshal before snapshot")
		}
		before = data
	}

	after, err := json.Marshal(record.After)
	if err != nil {
		return 0, time.Time{}, domain.NewStorageError(err, "failed to marshal after snapshot")
	}

	query := `
		INSERT INTO audit_log (ts, actor, action, kind, entity_id, before, after)
		VALUES (now(), $1, $2, $3, $4, $5, $6)
		RETURNING seq, ts
	`

	var seq int64
	var ts time.Time
	err = t.tx.QueryRowContext(ctx, query,
		record.Actor,
		string(record.Action),
		string(record.Kind),
		record.EntityID,
		before,
		after,
	).Scan(&seq, &ts)
	if err != nil {
		return 0, time.Time{}, mapSQLError(err, "append audit record")
	}

	record.Seq = seq
	record.TS = ts
	return seq, ts, nil
}

func (t *ledgerTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return mapSQLError(err, "commit transaction")
	}
	return nil
}

func (t *ledgerTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return mapSQLError(err, "rollback transaction")
	}
	return nil
}

// History returns the audit chain for one entity ordered by ascending seq.
func (s *PostgresLedgerStore) History(ctx context.Context, entityID string) ([]domain.AuditRecord, error) {
	query := `
		SELECT seq, ts, actor, action, kind, entity_id, before, after
		FROM audit_log
		WHERE entity_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, mapSQLError(err, "query audit history")
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		var beforeJSON, afterJSON []byte

		if err := rows.Scan(
			&record.Seq,
			&record.TS,
			&record.Actor,
			&record.Action,
			&record.Kind,
			&record.EntityID,
			&beforeJSON,
			&afterJSON,
		); err != nil {
			return nil, mapSQLError(err, "scan audit record")
		}

		if len(beforeJSON) > 0 {
			if err := json.Unmarshal(beforeJSON, &record.Before); err != nil {
				return nil, domain.NewStorageError(err, "failed to unmarshal before snapshot")
			}
		}
		if err := json.Unmarshal(afterJSON, &record.After); err != nil {
			return nil, domain.NewStorageError(err, "failed to unmarshal after snapshot")
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err, "iterate audit records")
	}

	return records, nil
}

// GetEntity reads one entity without locking.
func (s *PostgresLedgerStore) GetEntity(ctx context.Context, entityID string) (*domain.TrackedEntity, error) {
	kind, err := lookupKind(ctx, s.db, entityID)
	if err != nil {
		return nil, err
	}

	fields, createdAt, updatedAt, err := scanEntityRow(ctx, s.db, kind, entityID, false)
	if err != nil {
		return nil, err
	}

	return &domain.TrackedEntity{
		ID:        entityID,
		Kind:      kind,
		Fields:    fields,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// ListEntities reads a page of one kind, newest first.
func (s *PostgresLedgerStore) ListEntities(ctx context.Context, kind domain.EntityKind, limit, offset int) ([]*domain.TrackedEntity, int, error) {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return nil, 0, domain.NewValidationError("unknown entity kind %q", kind)
	}

	names := domain.FieldNames(kind)
	query := fmt.Sprintf(
		`SELECT id, %s, created_at, updated_at FROM %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		strings.Join(selectColumns(kind, names), ", "),
		spec.Table,
	)

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, mapSQLError(err, "query entities")
	}
	defer rows.Close()

	var entities []*domain.TrackedEntity
	for rows.Next() {
		var id string
		var createdAt, updatedAt time.Time
		dests, collect := fieldScanDests(kind, names)

		scanArgs := append([]interface{}{&id}, dests...)
		scanArgs = append(scanArgs, &createdAt, &updatedAt)
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, 0, mapSQLError(err, "scan entity")
		}

		entities = append(entities, &domain.TrackedEntity{
			ID:        id,
			Kind:      kind,
			Fields:    collect(),
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapSQLError(err, "iterate entities")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, spec.Table)
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, mapSQLError(err, "count entities")
	}

	return entities, total, nil
}

// CountLinked counts entities of a kind whose refField points at entityID.
func (s *PostgresLedgerStore) CountLinked(ctx context.Context, kind domain.EntityKind, refField, entityID string) (int64, error) {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return 0, domain.NewValidationError("unknown entity kind %q", kind)
	}
	if fs, known := spec.Fields[refField]; !known || fs.Type != domain.FieldRef {
		return 0, domain.NewValidationError("field %q is not a reference on kind %s", refField, kind)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, spec.Table, refField)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, entityID).Scan(&count); err != nil {
		return 0, mapSQLError(err, "count linked entities")
	}
	return count, nil
}

// querier is the subset of sql.DB and sql.Tx the read helpers need.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func lookupKind(ctx context.Context, q querier, entityID string) (domain.EntityKind, error) {
	var kind string
	err := q.QueryRowContext(ctx, `SELECT kind FROM entities WHERE id = $1`, entityID).Scan(&kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NewNotFoundError("entity %s not found", entityID)
		}
		return "", mapSQLError(err, "lookup entity kind")
	}
	return domain.EntityKind(kind), nil
}

func scanEntityRow(ctx context.Context, q querier, kind domain.EntityKind, entityID string, forUpdate bool) (domain.Fields, time.Time, time.Time, error) {
	spec, ok := domain.SpecFor(kind)
	if !ok {
		return nil, time.Time{}, time.Time{}, domain.NewValidationError("unknown entity kind %q", kind)
	}

	names := domain.FieldNames(kind)
	query := fmt.Sprintf(
		`SELECT %s, created_at, updated_at FROM %s WHERE id = $1`,
		strings.Join(selectColumns(kind, names), ", "),
		spec.Table,
	)
	if forUpdate {
		query += " FOR UPDATE"
	}

	dests, collect := fieldScanDests(kind, names)
	var createdAt, updatedAt time.Time
	scanArgs := append(dests, &createdAt, &updatedAt)

	if err := q.QueryRowContext(ctx, query, entityID).Scan(scanArgs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, time.Time{}, domain.NewNotFoundError("entity %s not found", entityID)
		}
		return nil, time.Time{}, time.Time{}, mapSQLError(err, "read entity")
	}

	return collect(), createdAt, updatedAt, nil
}

// selectColumns casts uuid reference columns to text so they scan as strings.
func selectColumns(kind domain.EntityKind, names []string) []string {
	spec, _ := domain.SpecFor(kind)
	columns := make([]string, len(names))
	for i, name := range names {
		if spec.Fields[name].Type == domain.FieldRef {
			columns[i] = name + "::text"
		} else {
			columns[i] = name
		}
	}
	return columns
}

// fieldScanDests builds typed scan destinations for a kind's fields and a
// collector that turns them back into a Fields map with nil for NULLs.
func fieldScanDests(kind domain.EntityKind, names []string) ([]interface{}, func() domain.Fields) {
	spec, _ := domain.SpecFor(kind)

	dests := make([]interface{}, len(names))
	for i, name := range names {
		switch spec.Fields[name].Type {
		case domain.FieldInt:
			dests[i] = &sql.NullInt64{}
		default:
			dests[i] = &sql.NullString{}
		}
	}

	collect := func() domain.Fields {
		fields := make(domain.Fields, len(names))
		for i, name := range names {
			switch dest := dests[i].(type) {
			case *sql.NullInt64:
				if dest.Valid {
					fields[name] = dest.Int64
				} else {
					fields[name] = nil
				}
			case *sql.NullString:
				if dest.Valid {
					fields[name] = dest.String
				} else {
					fields[name] = nil
				}
			}
		}
		return fields
	}

	return dests, collect
}

// mapSQLError translates driver errors into the domain error taxonomy.
func mapSQLError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return domain.NewDuplicateKeyError("duplicate value violates constraint %s", pqErr.Constraint)
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return domain.NewConflictError("transaction conflict: %s", pqErr.Message)
		}
	}
	return domain.NewStorageError(err, "failed to %s: %v", op, err)
}
