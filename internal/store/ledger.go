package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/model"
)

const ledgerCols = `id, child_id, amount, type, reference_type, reference_id, description, balance_after, created_at`

func scanLedgerEntry(sc scanner) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := sc.Scan(&e.ID, &e.ChildID, &e.Amount, &e.Type, &e.ReferenceType, &e.ReferenceID, &e.Description, &e.BalanceAfter, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LedgerStore owns every change to a child's points balance.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

// AddPoints credits (or, with a negative amount, debits) a child's balance
// and appends e to the ledger. The balance update is a single conditional
// statement; a debit that would go below zero returns InsufficientFunds and
// changes nothing. A zero CreatedAt is stamped with the current time.
func (s *LedgerStore) AddPoints(ctx context.Context, e model.LedgerEntry) (*model.LedgerEntry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE children SET points_balance = points_balance + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND points_balance + ? >= 0`,
		e.Amount, e.ChildID, e.Amount,
	)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM children WHERE id = ?`, e.ChildID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check child: %w", err)
		}
		if exists == 0 {
			return nil, apperr.NotFound("child not found")
		}
		return nil, apperr.InsufficientFunds("not enough points")
	}

	result, err = s.db.ExecContext(ctx,
		`INSERT INTO points_ledger (child_id, amount, type, reference_type, reference_id, description, balance_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, (SELECT points_balance FROM children WHERE id = ?), ?)`,
		e.ChildID, e.Amount, e.Type, e.ReferenceType, e.ReferenceID, e.Description, e.ChildID, ts(e.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ledgerCols+` FROM points_ledger WHERE id = ?`, id)
	entry, err := scanLedgerEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return entry, nil
}

func (s *LedgerStore) Balance(ctx context.Context, childID int64) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT points_balance FROM children WHERE id = ?`, childID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ListByChild returns the newest entries first, at most limit of them.
func (s *LedgerStore) ListByChild(ctx context.Context, childID int64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ledgerCols+` FROM points_ledger WHERE child_id = ? ORDER BY id DESC LIMIT ?`,
		childID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// EarnedSince sums task awards credited to a child since a moment.
func (s *LedgerStore) EarnedSince(ctx context.Context, childID int64, since time.Time) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM points_ledger WHERE child_id = ? AND type = ? AND created_at >= ?`,
		childID, model.LedgerTaskAward, ts(since),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum earnings: %w", err)
	}
	return total, nil
}
