// Package points implements the family points accounting operations: task
// submission and review, goal deposits, reward tickets, and the expiry sweep.
//
// Every mutating operation runs in a single immediate SQLite transaction, so
// balance and progress updates are serialized and the points award commits
// or rolls back together with the state change that earned it.
package points

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/config"
	"github.com/dukerupert/familyxp/internal/exchange"
	"github.com/dukerupert/familyxp/internal/metrics"
	"github.com/dukerupert/familyxp/internal/milestone"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/store"
	"github.com/dukerupert/familyxp/internal/tier"
)

// Notifier is told about committed changes so connected clients can refresh.
type Notifier interface {
	Notify(familyID int64, entity, action string, id int64, extra map[string]any)
}

type Options struct {
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Service struct {
	db         *sql.DB
	approval   config.Approval
	loc        *time.Location
	exchange   *exchange.Converter
	tiers      *tier.Classifier
	milestones *milestone.Engine
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New builds a Service from validated configuration.
func New(db *sql.DB, cfg *config.Config, opts Options) (*Service, error) {
	conv, err := exchange.New(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	s := &Service{
		db:         db,
		approval:   cfg.Approval,
		loc:        cfg.Location(),
		exchange:   conv,
		tiers:      tier.New(cfg.Tiers, cfg.Effort),
		milestones: milestone.New(cfg.Milestones.Thresholds),
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "points")
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Service) Exchange() *exchange.Converter { return s.exchange }

func (s *Service) Tiers() *tier.Classifier { return s.tiers }

func (s *Service) Milestones() *milestone.Engine { return s.milestones }

// Stores returns stores over the pool for plain reads.
func (s *Service) Stores() *store.Stores { return store.New(s.db) }

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// today is the calendar day of t in the family timezone.
func (s *Service) today(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

// weekStart is the Monday midnight, in the family timezone, of t's week.
func (s *Service) weekStart(t time.Time) time.Time {
	local := t.In(s.loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, s.loc)
}

func (s *Service) tx(ctx context.Context, fn func(*store.Stores) error) error {
	return store.RunInTx(ctx, s.db, fn)
}

func (s *Service) notify(familyID int64, entity, action string, id int64, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(familyID, entity, action, id, extra)
}

// activeChild loads a child that exists and is not archived.
func activeChild(ctx context.Context, st *store.Stores, id int64) (*model.Child, error) {
	c, err := st.Children.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Lifecycle == model.LifecycleArchived {
		return nil, apperr.NotFound("child not found")
	}
	return c, nil
}

func (s *Service) CreateFamily(ctx context.Context, name string, exchangeRate int) (*model.Family, error) {
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if exchangeRate == 0 {
		exchangeRate = s.exchange.DefaultRate()
	}
	if !s.exchange.IsValidRate(exchangeRate) {
		return nil, apperr.Validationf("exchange rate must be one of %v", s.exchange.Rates())
	}
	return s.Stores().Families.Create(ctx, name, exchangeRate)
}

func (s *Service) UpdateFamily(ctx context.Context, id int64, name string, exchangeRate int) (*model.Family, error) {
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if !s.exchange.IsValidRate(exchangeRate) {
		return nil, apperr.Validationf("exchange rate must be one of %v", s.exchange.Rates())
	}
	st := s.Stores()
	f, err := st.Families.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("family not found")
	}
	return st.Families.Update(ctx, id, name, exchangeRate)
}

func (s *Service) GetFamily(ctx context.Context, id int64) (*model.Family, error) {
	f, err := s.Stores().Families.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("family not found")
	}
	return f, nil
}

func (s *Service) CreateChild(ctx context.Context, familyID int64, name string, birthDate *time.Time) (*model.Child, error) {
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if _, err := s.GetFamily(ctx, familyID); err != nil {
		return nil, err
	}
	return s.Stores().Children.Create(ctx, familyID, name, birthDate)
}

func (s *Service) GetChild(ctx context.Context, id int64) (*model.Child, error) {
	return activeChild(ctx, s.Stores(), id)
}

func (s *Service) UpdateChild(ctx context.Context, id int64, name string, birthDate *time.Time) (*model.Child, error) {
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	st := s.Stores()
	c, err := activeChild(ctx, st, id)
	if err != nil {
		return nil, err
	}
	updated, err := st.Children.Update(ctx, id, name, birthDate)
	if err != nil {
		return nil, err
	}
	s.notify(c.FamilyID, "child", "updated", id, nil)
	return updated, nil
}

func (s *Service) ListChildren(ctx context.Context, familyID int64) ([]model.Child, error) {
	return s.Stores().Children.ListByFamily(ctx, familyID)
}

// FamilyOfChild returns the family a child belongs to, archived or not.
func (s *Service) FamilyOfChild(ctx context.Context, childID int64) (int64, error) {
	c, err := s.Stores().Children.GetByID(ctx, childID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, apperr.NotFound("child not found")
	}
	return c.FamilyID, nil
}

// SetPIN stores a family's parent PIN hash; an empty hash removes the PIN.
func (s *Service) SetPIN(ctx context.Context, familyID int64, hash string) error {
	if _, err := s.GetFamily(ctx, familyID); err != nil {
		return err
	}
	return s.Stores().Families.SetPIN(ctx, familyID, hash)
}

func (s *Service) ArchiveChild(ctx context.Context, id int64) error {
	st := s.Stores()
	if _, err := activeChild(ctx, st, id); err != nil {
		return err
	}
	return st.Children.Archive(ctx, id, s.clock())
}

// AdjustPoints applies a manual parent correction to a child's balance.
func (s *Service) AdjustPoints(ctx context.Context, childID int64, amount int, reason string) (*model.LedgerEntry, error) {
	if amount == 0 {
		return nil, apperr.Validation("amount must not be zero")
	}
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	var entry *model.LedgerEntry
	var familyID int64
	err := s.tx(ctx, func(st *store.Stores) error {
		c, err := activeChild(ctx, st, childID)
		if err != nil {
			return err
		}
		familyID = c.FamilyID
		entry, err = st.Ledger.AddPoints(ctx, model.LedgerEntry{
			ChildID: childID, Amount: amount, Type: model.LedgerAdjustment, Description: reason, CreatedAt: s.clock(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(familyID, "child", "balance_changed", childID, map[string]any{"balance": entry.BalanceAfter})
	return entry, nil
}

// ListLedger returns a child's most recent ledger entries, newest first.
func (s *Service) ListLedger(ctx context.Context, childID int64, limit int) ([]model.LedgerEntry, error) {
	if _, err := s.FamilyOfChild(ctx, childID); err != nil {
		return nil, err
	}
	return s.Stores().Ledger.ListByChild(ctx, childID, limit)
}
