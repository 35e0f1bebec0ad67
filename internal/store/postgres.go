package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresBackend executes gateway operations against Postgres through
// database/sql (pgx stdlib driver). Backend failures are wrapped in
// ErrUnavailable so callers can surface them as a retryable condition.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend returns a backend over the given database handle.
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) First(ctx context.Context, d *Descriptor, pred Predicate) (Entity, error) {
	where, args := pred.SQL(0)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1", strings.Join(d.Columns, ", "), d.Table, where)
	ent := d.New()
	if err := b.db.QueryRowContext(ctx, q, args...).Scan(d.Fields(ent)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return ent, nil
}

func (b *PostgresBackend) List(ctx context.Context, d *Descriptor, pred Predicate) ([]Entity, error) {
	where, args := pred.SQL(0)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", strings.Join(d.Columns, ", "), d.Table, where, ColID)
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		ent := d.New()
		if err := rows.Scan(d.Fields(ent)...); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (b *PostgresBackend) Insert(ctx context.Context, d *Descriptor, ent Entity) error {
	placeholders := make([]string, len(d.Columns))
	for i := range d.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Table, strings.Join(d.Columns, ", "), strings.Join(placeholders, ", "))
	if _, err := b.db.ExecContext(ctx, q, d.Values(ent)...); err != nil {
		return unavailable(err)
	}
	return nil
}

func (b *PostgresBackend) Update(ctx context.Context, d *Descriptor, ent Entity, pred Predicate) (int64, error) {
	// Columns[0] is id; it anchors the WHERE clause rather than the SET list.
	sets := make([]string, 0, len(d.Columns)-1)
	for i, col := range d.Columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
	}
	where, args := pred.SQL(len(d.Columns))
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1 AND %s", d.Table, strings.Join(sets, ", "), ColID, where)
	res, err := b.db.ExecContext(ctx, q, append(d.Values(ent), args...)...)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (b *PostgresBackend) DeleteHard(ctx context.Context, d *Descriptor, pred Predicate) (int64, error) {
	where, args := pred.SQL(0)
	q := fmt.Sprintf("DELETE FROM %s WHERE %s", d.Table, where)
	res, err := b.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
