// Package pg provides a Postgres-backed implementation of kv.Store.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"chainlogistics.org/internal/kv"
)

// Ledger mutations are read-modify-write over kv_entries (Has, then upsert),
// so Update transactions must run serializable: under weaker isolation two
// concurrent registrations of one id would both pass the existence check, and
// two concurrent appends would both read and write the same event sequence
// value. Serialization failures (SQLSTATE 40001) are retried.
var updateTxOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}

const (
	maxUpdateAttempts    = 5
	serializationFailure = "40001"
)

type Store struct {
	db *sql.DB
}

var _ kv.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) View(ctx context.Context, fn func(kv.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Update(ctx context.Context, fn func(kv.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.updateOnce(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func (s *Store) updateOnce(ctx context.Context, fn func(kv.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, updateTxOptions)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTx) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `select value from kv_entries where key=$1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *sqlTx) Has(key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(t.ctx, `select exists(select 1 from kv_entries where key=$1)`, key).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (t *sqlTx) Set(key string, value []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		insert into kv_entries(key, value)
		values ($1,$2)
		on conflict (key) do update
		set value = excluded.value
	`, key, value)
	return err
}

func (t *sqlTx) Delete(key string) error {
	_, err := t.tx.ExecContext(t.ctx, `delete from kv_entries where key=$1`, key)
	return err
}
