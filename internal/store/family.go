package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyxp/internal/model"
)

type FamilyStore struct {
	db DBTX
}

func NewFamilyStore(db DBTX) *FamilyStore {
	return &FamilyStore{db: db}
}

const familyCols = `id, name, exchange_rate, pin_hash != '', created_at, updated_at`

func scanFamily(sc scanner) (*model.Family, error) {
	var f model.Family
	if err := sc.Scan(&f.ID, &f.Name, &f.ExchangeRate, &f.HasPIN, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *FamilyStore) Create(ctx context.Context, name string, exchangeRate int) (*model.Family, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO families (name, exchange_rate) VALUES (?, ?)`,
		name, exchangeRate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) GetByID(ctx context.Context, id int64) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) Update(ctx context.Context, id int64, name string, exchangeRate int) (*model.Family, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE families SET name = ?, exchange_rate = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, exchangeRate, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetPIN stores a bcrypt hash of the parent PIN. An empty hash clears it.
func (s *FamilyStore) SetPIN(ctx context.Context, id int64, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE families SET pin_hash = ? WHERE id = ?`, hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *FamilyStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT pin_hash FROM families WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	return hash, nil
}

type ChildStore struct {
	db DBTX
}

func NewChildStore(db DBTX) *ChildStore {
	return &ChildStore{db: db}
}

const childCols = `id, family_id, name, birth_date, points_balance, deleted_at, created_at, updated_at`

const dateLayout = "2006-01-02"

func scanChild(sc scanner) (*model.Child, error) {
	var c model.Child
	var birth string
	var deletedAt sql.NullTime
	err := sc.Scan(&c.ID, &c.FamilyID, &c.Name, &birth, &c.PointsBalance, &deletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if birth != "" {
		b, err := time.Parse(dateLayout, birth)
		if err != nil {
			return nil, fmt.Errorf("parse birth date: %w", err)
		}
		c.BirthDate = &b
	}
	c.Lifecycle = lifecycle(deletedAt)
	return &c, nil
}

// lifecycle maps a deleted_at tombstone onto the domain lifecycle tag.
func lifecycle(deletedAt sql.NullTime) model.Lifecycle {
	if deletedAt.Valid {
		return model.LifecycleArchived
	}
	return model.LifecycleActive
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func (s *ChildStore) Create(ctx context.Context, familyID int64, name string, birthDate *time.Time) (*model.Child, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO children (family_id, name, birth_date) VALUES (?, ?, ?)`,
		familyID, name, formatDate(birthDate),
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the child whether or not it is archived.
func (s *ChildStore) GetByID(ctx context.Context, id int64) (*model.Child, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+childCols+` FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

// ListByFamily returns the active children of a family ordered by name.
func (s *ChildStore) ListByFamily(ctx context.Context, familyID int64) ([]model.Child, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+childCols+` FROM children WHERE family_id = ? AND deleted_at IS NULL ORDER BY name ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func (s *ChildStore) Update(ctx context.Context, id int64, name string, birthDate *time.Time) (*model.Child, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE children SET name = ?, birth_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, formatDate(birthDate), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Archive tombstones the child. Its history and balance are kept.
func (s *ChildStore) Archive(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE children SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		ts(at), id,
	)
	if err != nil {
		return fmt.Errorf("archive child: %w", err)
	}
	return nil
}
