package mapping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

// Tx is the transaction a block's handlers write through. Commit and rollback belong to the executor.
type Tx struct {
	tx       *sql.Tx
	dialect  *meddler.Database
	bindType int

	afterCommit []func()
}

// NewTx wraps tx. Queries use ? placeholders and are rebound for bindType.
func NewTx(tx *sql.Tx, dialect *meddler.Database, bindType int) *Tx {
	return &Tx{tx: tx, dialect: dialect, bindType: bindType}
}

// AfterCommit runs fn once the transaction commits.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// Committed runs the after-commit callbacks. The executor calls it after a successful commit.
func (t *Tx) Committed() {
	for _, fn := range t.afterCommit {
		fn()
	}
	t.afterCommit = nil
}

// Rebind converts ? placeholders to the dialect's style.
func (t *Tx) Rebind(query string) string {
	return sqlx.Rebind(t.bindType, query)
}

func (t *Tx) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.Rebind(query), args...)
}

func (t *Tx) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.Rebind(query), args...)
}

func (t *Tx) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.Rebind(query), args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.Rebind(query), args...)
}

// Insert inserts entity into table.
func (t *Tx) Insert(table string, entity any) error {
	return t.dialect.Insert(t.tx, table, entity)
}

// Update updates entity by its integer primary key.
func (t *Tx) Update(table string, entity any) error {
	return t.dialect.Update(t.tx, table, entity)
}

// Upsert inserts entity or, when a row with the same key column exists, overwrites it.
func (t *Tx) Upsert(table, key string, entity any) error {
	columns, err := t.dialect.Columns(entity, true)
	if err != nil {
		return err
	}
	values, err := t.dialect.Values(entity, true)
	if err != nil {
		return err
	}
	placeholders, err := t.dialect.Placeholders(entity, true)
	if err != nil {
		return err
	}

	quoted := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, c := range columns {
		quoted[i] = t.quote(c)
		if c != key {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoted[i], quoted[i]))
		}
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		t.quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), t.quote(key), conflict)

	if _, err := t.tx.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

// Load reads the row of table whose id equals id into dst. It returns ErrNotFound if there is none.
func (t *Tx) Load(table string, dst any, id any) error {
	query := t.Rebind(fmt.Sprintf("SELECT * FROM %s WHERE id = ?", t.quote(table)))
	if err := t.dialect.QueryRow(t.tx, dst, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %v", ErrNotFound, table, id)
		}
		return err
	}
	return nil
}

// SoftDelete marks the row of table with the given id as deleted.
func (t *Tx) SoftDelete(table string, id any) error {
	query := t.Rebind(fmt.Sprintf("UPDATE %s SET deleted_at = ? WHERE id = ?", t.quote(table)))
	if _, err := t.tx.Exec(query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to soft delete %s %v: %w", table, id, err)
	}
	return nil
}

func (t *Tx) quote(name string) string {
	return t.dialect.Quote + name + t.dialect.Quote
}
