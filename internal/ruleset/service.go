package ruleset

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WriteStore defines the DB methods needed to replace a rule.
// Satisfied by *database.Queries; narrow interface for testability.
type WriteStore interface {
	DeleteBookingRule(ctx context.Context, mealType enum.MealType) error
	InsertBookingRuleLimit(ctx context.Context, arg database.InsertBookingRuleLimitParams) error
}

// NewWriteStore creates a WriteStore from a DBTX (pool or tx).
type NewWriteStore func(db database.DBTX) WriteStore

// Invalidator drops a cached rule.
type Invalidator interface {
	Invalidate(mealType enum.MealType)
}

// Service edits the rule table.
type Service struct {
	pool     TxBeginner
	newStore NewWriteStore
	cache    Invalidator
}

// NewService creates a Service. cache may be nil.
func NewService(pool TxBeginner, newStore NewWriteStore, cache Invalidator) *Service {
	return &Service{pool: pool, newStore: newStore, cache: cache}
}

// Replace swaps the whole rule for r.MealType atomically.
func (s *Service) Replace(ctx context.Context, r booking.Rule) error {
	if err := r.Check(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := store.DeleteBookingRule(ctx, r.MealType); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	for _, p := range toParams(r) {
		if err := store.InsertBookingRuleLimit(ctx, p); err != nil {
			return fmt.Errorf("insert %s limit: %w", p.RecipeCategory, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(r.MealType)
	}
	return nil
}

// ReplaceAll replaces every rule in rules. Used by the seed command.
func (s *Service) ReplaceAll(ctx context.Context, rules booking.Rules) error {
	for _, r := range sorted(rules) {
		if err := s.Replace(ctx, r); err != nil {
			return fmt.Errorf("%s: %w", r.MealType, err)
		}
	}
	return nil
}
