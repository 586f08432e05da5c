// Package store persists the familyxp entities in SQLite.
//
// Every store runs against a DBTX so the same code serves plain reads on the
// pool and multi-step operations inside RunInTx. Getters return (nil, nil)
// when no row matches.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface{ Scan(...any) error }

// Stores groups every entity store over one connection or transaction.
type Stores struct {
	Families    *FamilyStore
	Children    *ChildStore
	Tasks       *TaskStore
	Instances   *InstanceStore
	Completions *CompletionStore
	Goals       *GoalStore
	Rewards     *RewardStore
	Tickets     *TicketStore
	Ledger      *LedgerStore
}

func New(db DBTX) *Stores {
	return &Stores{
		Families:    NewFamilyStore(db),
		Children:    NewChildStore(db),
		Tasks:       NewTaskStore(db),
		Instances:   NewInstanceStore(db),
		Completions: NewCompletionStore(db),
		Goals:       NewGoalStore(db),
		Rewards:     NewRewardStore(db),
		Tickets:     NewTicketStore(db),
		Ledger:      NewLedgerStore(db),
	}
}

const maxTxRetries = 5

// RunInTx runs fn in a write transaction, committing when it returns nil.
// The whole transaction is retried when SQLite reports the database busy.
func RunInTx(ctx context.Context, db *sql.DB, fn func(*Stores) error) error {
	b := retry.WithMaxRetries(maxTxRetries, retry.NewExponential(20*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := runOnce(ctx, db, fn)
		if IsBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*Stores) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(New(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsBusy reports whether err is SQLite refusing a lock.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// isUnique reports whether err is a UNIQUE constraint violation.
func isUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(se.Code() == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}

// ts normalizes times written to the database so stored values compare
// correctly as text.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: ts(*t), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
