package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"audit-trail/internal/rbac"
	"audit-trail/pkg/utils"
)

// NOTE: This repository assumes the schema from db/migrations:
// - action_type (catalog, code UNIQUE)
// - audit_log (append-only, previous_data/new_data stored as json so bytes round-trip)
//
// Version uniqueness is enforced by:
// UNIQUE (entity_type, entity_id, version) named audit_log_entity_version_key

const versionConstraint = "audit_log_entity_version_key"

// PostgresRepo implements Repository on database/sql with the pgx driver.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const recordColumns = `
  l.id, l.entity_type, l.entity_id, l.action_type_id, t.code, t.description,
  l.action_by, l.action_at, l.previous_data, l.new_data, l.version, l.ip_address, l.created_at`

const recordFrom = `
FROM audit_log l
JOIN action_type t ON t.id = l.action_type_id`

func (r *PostgresRepo) ListActionTypes(ctx context.Context) ([]ActionType, error) {
	const q = `
SELECT id, code, description, is_active
FROM action_type
ORDER BY id
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionType
	for rows.Next() {
		var (
			t    ActionType
			desc sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Code, &desc, &t.IsActive); err != nil {
			return nil, err
		}
		t.Description = desc.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpsertActionTypes(ctx context.Context, types []ActionType) error {
	const q = `
INSERT INTO action_type (code, description, is_active)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO UPDATE
SET description = EXCLUDED.description,
    is_active = EXCLUDED.is_active
`
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, t := range types {
			if _, err := tx.ExecContext(ctx, q, t.Code, t.Description, t.IsActive); err != nil {
				return fmt.Errorf("upsert action type %s: %w", t.Code, err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) MaxVersion(ctx context.Context, entityType, entityID string) (int, error) {
	const q = `
SELECT COALESCE(MAX(version), 0)
FROM audit_log
WHERE entity_type = $1 AND entity_id = $2
`
	var v int
	if err := r.db.QueryRowContext(ctx, q, entityType, entityID).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, rec Record) (Record, error) {
	const q = `
INSERT INTO audit_log (
  entity_type, entity_id, action_type_id, action_by, action_at, previous_data, new_data, version, ip_address
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
RETURNING id, created_at
`
	err := r.db.QueryRowContext(ctx, q,
		rec.EntityType,
		rec.EntityID,
		rec.ActionTypeID,
		rec.ActionBy,
		rec.ActionAt,
		jsonArg(rec.PreviousData),
		jsonArg(rec.NewData),
		rec.Version,
		rec.IPAddress,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if utils.IsUniqueViolation(err, versionConstraint) {
			return Record{}, ErrVersionConflict
		}
		return Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, id int64, scope rbac.Scope) (Record, error) {
	w := whereBuilder{}
	w.add("l.id = %s", id)
	if err := w.scope(scope); err != nil {
		return Record{}, err
	}
	q := "SELECT" + recordColumns + recordFrom + w.sql()

	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, w.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepo) Find(ctx context.Context, q Query) ([]Record, error) {
	w, err := buildWhere(q)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT")
	b.WriteString(recordColumns)
	b.WriteString(recordFrom)
	b.WriteString(w.sql())
	b.WriteString(orderBy(q.Sort))
	if q.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d OFFSET %d", q.Limit, max(q.Offset, 0))
	}

	rows, err := r.db.QueryContext(ctx, b.String(), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context, q Query) (int64, error) {
	w, err := buildWhere(q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log l"+w.sql(), w.args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) CountByActionType(ctx context.Context, scope rbac.Scope) ([]ActionCount, error) {
	w := whereBuilder{}
	if err := w.scope(scope); err != nil {
		return nil, err
	}
	q := `
SELECT t.id, t.code, t.description, COUNT(*) AS n` + recordFrom + w.sql() + `
GROUP BY t.id, t.code, t.description
ORDER BY n DESC, t.code ASC`

	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ActionCount{}
	for rows.Next() {
		var (
			c    ActionCount
			desc sql.NullString
		)
		if err := rows.Scan(&c.ActionType.ID, &c.ActionType.Code, &desc, &c.Count); err != nil {
			return nil, err
		}
		c.ActionType.Description = desc.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountByEntityType(ctx context.Context, scope rbac.Scope) ([]EntityCount, error) {
	w := whereBuilder{}
	if err := w.scope(scope); err != nil {
		return nil, err
	}
	q := `
SELECT l.entity_type, COUNT(*) AS n
FROM audit_log l` + w.sql() + `
GROUP BY l.entity_type
ORDER BY n DESC, l.entity_type ASC`

	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []EntityCount{}
	for rows.Next() {
		var c EntityCount
		if err := rows.Scan(&c.EntityType, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (Record, error) {
	var (
		rec        Record
		desc       sql.NullString
		actionBy   sql.NullString
		ip         sql.NullString
		prev, next []byte
	)
	if err := s.Scan(
		&rec.ID,
		&rec.EntityType,
		&rec.EntityID,
		&rec.ActionTypeID,
		&rec.ActionType.Code,
		&desc,
		&actionBy,
		&rec.ActionAt,
		&prev,
		&next,
		&rec.Version,
		&ip,
		&rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	rec.ActionType.ID = rec.ActionTypeID
	rec.ActionType.Description = desc.String
	if actionBy.Valid {
		rec.ActionBy = &actionBy.String
	}
	if ip.Valid {
		rec.IPAddress = &ip.String
	}
	if prev != nil {
		rec.PreviousData = json.RawMessage(prev)
	}
	if next != nil {
		rec.NewData = json.RawMessage(next)
	}
	rec.ActionAt = rec.ActionAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// jsonArg passes a payload as text so the json column keeps it verbatim.
func jsonArg(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

// whereBuilder accumulates AND-ed predicates with positional placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

// add appends a clause; each %s in format becomes the placeholder of the same arg.
func (w *whereBuilder) add(format string, arg any) {
	w.args = append(w.args, arg)
	ph := fmt.Sprintf("$%d", len(w.args))
	w.clauses = append(w.clauses, strings.ReplaceAll(format, "%s", ph))
}

func (w *whereBuilder) scope(s rbac.Scope) error {
	switch s.Kind {
	case rbac.ScopeAll:
	case rbac.ScopeActorPrefix:
		w.add(`l.action_by LIKE %s ESCAPE '\'`, utils.EscapeLike(s.Value)+"%")
	case rbac.ScopeActor:
		w.add("l.action_by = %s", s.Value)
	default:
		return fmt.Errorf("%w: %d", rbac.ErrUnknownScope, s.Kind)
	}
	return nil
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(w.clauses, "\n  AND ")
}

func buildWhere(q Query) (whereBuilder, error) {
	w := whereBuilder{}
	if err := w.scope(q.Scope); err != nil {
		return w, err
	}
	if q.EntityType != "" {
		w.add("l.entity_type = %s", q.EntityType)
	}
	if q.EntityID != "" {
		w.add("l.entity_id = %s", q.EntityID)
	}
	if q.ActionTypeID != nil {
		w.add("l.action_type_id = %s", *q.ActionTypeID)
	}
	if q.ActionBy != "" {
		w.add("l.action_by = %s", q.ActionBy)
	}
	if q.From != nil {
		w.add("l.action_at >= %s", *q.From)
	}
	if q.To != nil {
		w.add("l.action_at <= %s", *q.To)
	}
	if q.Search != "" {
		w.add(`(l.entity_type ILIKE %s ESCAPE '\' OR l.entity_id ILIKE %s ESCAPE '\' OR l.action_by ILIKE %s ESCAPE '\')`,
			"%"+utils.EscapeLike(q.Search)+"%")
	}
	return w, nil
}

func orderBy(s Sort) string {
	col := s.Column
	if _, ok := sortableColumns[col]; !ok {
		col = sortNewestFirst.Column
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("\nORDER BY l.%s %s, l.id %s", col, dir, dir)
}
