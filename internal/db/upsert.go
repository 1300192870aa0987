package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Execer runs statements and COPY loads, such as a pgx.Tx.
type Execer interface {
	Copier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Upsert stages rows in a temp table with COPY and merges them into Table.
// Rows whose Keys already exist have their Update columns overwritten; a nil
// Update overwrites every non-key column, and an empty one keeps the old row.
type Upsert struct {
	Table   string
	Columns []string
	Keys    []string
	Update  []string
}

func (u Upsert) check() error {
	if len(u.Columns) == 0 {
		return eris.Errorf("db: upsert %s: no columns", u.Table)
	}
	if len(u.Keys) == 0 {
		return eris.Errorf("db: upsert %s: no conflict keys", u.Table)
	}
	return nil
}

func (u Upsert) updateColumns() []string {
	if u.Update != nil {
		return u.Update
	}
	var cols []string
	for _, c := range u.Columns {
		isKey := false
		for _, k := range u.Keys {
			isKey = isKey || k == c
		}
		if !isKey {
			cols = append(cols, c)
		}
	}
	return cols
}

// staging names the temp table rows are copied into.
func (u Upsert) staging() string {
	return "_stage_" + strings.ReplaceAll(u.Table, ".", "_")
}

func (u Upsert) mergeSQL() string {
	var b strings.Builder
	cols := columnList(u.Columns)
	b.WriteString("INSERT INTO " + sanitizeTable(u.Table) + " (" + cols + ") SELECT " + cols)
	b.WriteString(" FROM " + pgx.Identifier{u.staging()}.Sanitize())
	b.WriteString(" ON CONFLICT (" + columnList(u.Keys) + ") ")

	update := u.updateColumns()
	if len(update) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	b.WriteString("DO UPDATE SET ")
	for i, c := range update {
		if i > 0 {
			b.WriteString(", ")
		}
		q := pgx.Identifier{c}.Sanitize()
		b.WriteString(q + " = EXCLUDED." + q)
	}
	return b.String()
}

// Exec merges rows inside tx and returns the number of rows written. The
// staging table is dropped when tx commits.
func (u Upsert) Exec(ctx context.Context, tx Execer, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := u.check(); err != nil {
		return 0, err
	}

	create := "CREATE TEMP TABLE " + pgx.Identifier{u.staging()}.Sanitize() +
		" (LIKE " + sanitizeTable(u.Table) + " INCLUDING DEFAULTS) ON COMMIT DROP"
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: stage", u.Table)
	}
	if _, err := CopyFrom(ctx, tx, u.staging(), u.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s", u.Table)
	}
	tag, err := tx.Exec(ctx, u.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: merge", u.Table)
	}
	return tag.RowsAffected(), nil
}

// BulkUpsert runs u in its own transaction on pool.
func BulkUpsert(ctx context.Context, pool Pool, u Upsert, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := u.check(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := u.Exec(ctx, tx, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return n, nil
}

// identifier splits an optionally schema-qualified table name.
func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
