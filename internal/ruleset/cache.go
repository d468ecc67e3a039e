package ruleset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
)

// Store defines the DB methods needed to read rules.
// Satisfied by *database.Queries; narrow interface for testability.
type Store interface {
	ListBookingRuleLimits(ctx context.Context, mealType enum.MealType) ([]database.BookingRuleLimit, error)
	ListAllBookingRuleLimits(ctx context.Context) ([]database.BookingRuleLimit, error)
}

// Cache is a read-through Provider over the booking_rules table. Entries
// expire after ttl; Invalidate drops one early after an admin edit.
//
// A fill only lands if no Invalidate ran while the store was being read, so
// a read racing an edit cannot put the old rule back. Edits made by another
// process are still only picked up on expiry.
type Cache struct {
	store Store
	lru   *expirable.LRU[enum.MealType, booking.Rule]

	mu  sync.Mutex
	gen map[enum.MealType]uint64
}

// NewCache creates a Cache. A ttl of zero disables expiry.
func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{
		store: store,
		lru:   expirable.NewLRU[enum.MealType, booking.Rule](len(enum.MealTypes), nil, ttl),
		gen:   make(map[enum.MealType]uint64, len(enum.MealTypes)),
	}
}

func (c *Cache) Rule(ctx context.Context, mealType enum.MealType) (booking.Rule, error) {
	if r, ok := c.lru.Get(mealType); ok {
		return r, nil
	}

	gen := c.generation(mealType)
	rows, err := c.store.ListBookingRuleLimits(ctx, mealType)
	if err != nil {
		return booking.Rule{}, fmt.Errorf("load rule %s: %w", mealType, err)
	}
	r, err := fromRows(rows).Get(mealType)
	if err != nil {
		return booking.Rule{}, err
	}
	c.fill(mealType, r, gen)
	return r, nil
}

// All always reads through to the store and refreshes the cache.
func (c *Cache) All(ctx context.Context) ([]booking.Rule, error) {
	gens := make(map[enum.MealType]uint64, len(enum.MealTypes))
	for _, mt := range enum.MealTypes {
		gens[mt] = c.generation(mt)
	}
	rows, err := c.store.ListAllBookingRuleLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	rules := fromRows(rows)
	for mt, r := range rules {
		c.fill(mt, r, gens[mt])
	}
	return sorted(rules), nil
}

// Invalidate forgets the cached rule for mealType.
func (c *Cache) Invalidate(mealType enum.MealType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[mealType]++
	c.lru.Remove(mealType)
}

func (c *Cache) generation(mealType enum.MealType) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[mealType]
}

// fill caches r unless mealType was invalidated since gen was read.
func (c *Cache) fill(mealType enum.MealType, r booking.Rule, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[mealType] != gen {
		return
	}
	c.lru.Add(mealType, r)
}
