package mapping

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID        string     `meddler:"id"`
	Balance   int64      `meddler:"balance"`
	DeletedAt *time.Time `meddler:"deleted_at"`
}

func newTx(t *testing.T) (*Tx, *sql.Tx) {
	t.Helper()

	cfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "tx.sqlite")}
	cfg.ApplyDefaults()
	database, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec(`CREATE TABLE accounts (id TEXT PRIMARY KEY, balance INTEGER NOT NULL, deleted_at TIMESTAMP)`)
	require.NoError(t, err)

	sqlTx, err := database.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlTx.Rollback() })

	return NewTx(sqlTx, db.Dialect(cfg.Driver), db.BindType(cfg.Driver)), sqlTx
}

func TestTx_UpsertLoadSoftDelete(t *testing.T) {
	tx, _ := newTx(t)

	require.NoError(t, tx.Upsert("accounts", "id", &account{ID: "alice", Balance: 10}))
	require.NoError(t, tx.Upsert("accounts", "id", &account{ID: "alice", Balance: 25}))

	var got account
	require.NoError(t, tx.Load("accounts", &got, "alice"))
	require.Equal(t, int64(25), got.Balance)
	require.Nil(t, got.DeletedAt)

	require.NoError(t, tx.SoftDelete("accounts", "alice"))
	require.NoError(t, tx.Load("accounts", &got, "alice"))
	require.NotNil(t, got.DeletedAt)

	err := tx.Load("accounts", &got, "bob")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTx_AfterCommit(t *testing.T) {
	tx, sqlTx := newTx(t)

	var calls []int
	tx.AfterCommit(func() { calls = append(calls, 1) })
	tx.AfterCommit(func() { calls = append(calls, 2) })

	require.NoError(t, sqlTx.Commit())
	tx.Committed()
	tx.Committed()

	require.Equal(t, []int{1, 2}, calls)
}

func TestTx_ExecRebinds(t *testing.T) {
	tx, _ := newTx(t)

	_, err := tx.Exec(`INSERT INTO accounts (id, balance) VALUES (?, ?)`, "carol", 3)
	require.NoError(t, err)

	var balance int64
	require.NoError(t, tx.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, "carol").Scan(&balance))
	require.Equal(t, int64(3), balance)
}

func TestContext_Decode(t *testing.T) {
	hc := &Context{Event: &source.EventContext{
		Event:     source.Event{ID: "1-0", Params: []byte(`{"from":"a","amount":"5"}`)},
		Extrinsic: &source.Extrinsic{ID: "1-x", Args: []byte(`{"who":"b"}`)},
	}}

	var params struct {
		From   string `json:"from"`
		Amount string `json:"amount"`
	}
	require.NoError(t, hc.DecodeParams(&params))
	require.Equal(t, "a", params.From)

	var args struct {
		Who string `json:"who"`
	}
	require.NoError(t, hc.DecodeArgs(&args))
	require.Equal(t, "b", args.Who)

	require.Error(t, (&Context{}).DecodeParams(&params))
	require.Error(t, (&Context{}).DecodeArgs(&args))
}
