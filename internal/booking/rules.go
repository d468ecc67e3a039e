// Package booking holds the admission rules for meal bookings and the
// lifecycle state machine applied by kitchen staff. Everything here is pure:
// persistence, clocks and HTTP live in the callers.
package booking

import (
	"errors"
	"fmt"
	"math"

	"github.com/mealdesk/api/internal/enum"
)

// Errors returned by the rule validator. These indicate a defect in the caller
// or in configuration, not a rejected order.
var (
	ErrRuleNotFound = errors.New("booking rule not configured")
	ErrInvalidItem  = errors.New("invalid booking item")
	ErrInvalidRule  = errors.New("invalid booking rule")
)

// Limit bounds the total quantity ordered for one category. A nil Max means
// the category is unbounded above.
type Limit struct {
	Min int  `json:"min" yaml:"min"`
	Max *int `json:"max" yaml:"max"`
}

// Allows reports whether qty falls within the limit.
func (l Limit) Allows(qty int) bool {
	if qty < l.Min {
		return false
	}
	return l.Max == nil || qty <= *l.Max
}

func (l Limit) String() string {
	if l.Max == nil {
		return fmt.Sprintf("at least %d", l.Min)
	}
	if l.Min == *l.Max {
		return fmt.Sprintf("exactly %d", l.Min)
	}
	return fmt.Sprintf("between %d and %d", l.Min, *l.Max)
}

// Max is a convenience for building limits in code and tests.
func Max(n int) *int { return &n }

// Rule is the course composition allowed for a meal type. Categories missing
// from Limits may not be ordered at all.
type Rule struct {
	MealType enum.MealType                 `json:"meal_type"`
	Limits   map[enum.RecipeCategory]Limit `json:"limits"`
}

// Check verifies the rule table invariants: at least one permitted category,
// known categories, min >= 0 and max >= min. Bounds must fit the int4
// columns they are stored in.
func (r Rule) Check() error {
	if !r.MealType.Valid() {
		return fmt.Errorf("%w: unknown meal type %q", ErrInvalidRule, r.MealType)
	}
	if len(r.Limits) == 0 {
		return fmt.Errorf("%w: %s: at least one category must be permitted", ErrInvalidRule, r.MealType)
	}
	for cat, l := range r.Limits {
		if !cat.Valid() {
			return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidRule, r.MealType, cat)
		}
		if l.Min < 0 {
			return fmt.Errorf("%w: %s/%s: min must be >= 0", ErrInvalidRule, r.MealType, cat)
		}
		if l.Max != nil && *l.Max < l.Min {
			return fmt.Errorf("%w: %s/%s: max must be >= min", ErrInvalidRule, r.MealType, cat)
		}
		if l.Min > math.MaxInt32 || (l.Max != nil && *l.Max > math.MaxInt32) {
			return fmt.Errorf("%w: %s/%s: bound exceeds %d", ErrInvalidRule, r.MealType, cat, math.MaxInt32)
		}
	}
	return nil
}

// Rules is the full rule table, one rule per meal type.
type Rules map[enum.MealType]Rule

// Get returns the rule configured for mealType.
func (rs Rules) Get(mealType enum.MealType) (Rule, error) {
	r, ok := rs[mealType]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, mealType)
	}
	return r, nil
}

// ValidateBookingItems looks up the rule for mealType and validates items
// against it.
func (rs Rules) ValidateBookingItems(mealType enum.MealType, items []OrderItem) (ValidationResult, error) {
	r, err := rs.Get(mealType)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidateBookingItems(r, items)
}

// OrderItem is a candidate line of a booking. Prices are in minor currency
// units.
type OrderItem struct {
	RecipeID  string
	Category  enum.RecipeCategory
	Quantity  int64
	UnitPrice int64
}

// Subtotal is quantity * unit price. Callers must have checked the product
// fits, see TotalPrice.
func (it OrderItem) Subtotal() int64 {
	return it.Quantity * it.UnitPrice
}

func mulOK(a, b int64) (int64, bool) {
	p := a * b
	if a != 0 && (p/a != b || (a == -1 && b == math.MinInt64)) {
		return 0, false
	}
	return p, true
}

func addOK(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

// ValidationResult is the outcome of a composition check. Errors lists every
// violation found, in category order.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateBookingItems checks the course composition of items against rule.
// A rejected order is a normal result; the error return is reserved for
// malformed items.
func ValidateBookingItems(rule Rule, items []OrderItem) (ValidationResult, error) {
	counts := make(map[enum.RecipeCategory]int64, len(enum.RecipeCategories))
	present := make(map[enum.RecipeCategory]bool, len(enum.RecipeCategories))
	for i, it := range items {
		if !it.Category.Valid() {
			return ValidationResult{}, fmt.Errorf("%w: items[%d]: unknown category %q", ErrInvalidItem, i, it.Category)
		}
		n, ok := addOK(counts[it.Category], it.Quantity)
		if !ok {
			return ValidationResult{}, fmt.Errorf("%w: items[%d]: %s quantity overflows", ErrInvalidItem, i, it.Category)
		}
		counts[it.Category] = n
		present[it.Category] = true
	}

	errs := []string{}
	if len(items) == 0 {
		errs = append(errs, "at least one item is required")
	}

	for _, cat := range enum.RecipeCategories {
		qty := counts[cat]
		l, permitted := rule.Limits[cat]
		if !permitted {
			if present[cat] {
				errs = append(errs, fmt.Sprintf("category %s is not permitted for %s", cat, rule.MealType))
			}
			continue
		}
		if !l.Allows(int(qty)) {
			errs = append(errs, fmt.Sprintf("%s requires %s item(s), got %d", cat, l, qty))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// TotalPrice sums quantity * unit price over items. ok is false when a
// product or the sum does not fit in int64.
func TotalPrice(items []OrderItem) (int64, bool) {
	var total int64
	for _, it := range items {
		sub, ok := mulOK(it.Quantity, it.UnitPrice)
		if !ok {
			return 0, false
		}
		if total, ok = addOK(total, sub); !ok {
			return 0, false
		}
	}
	return total, true
}

// ValidateTotalPrice reports whether declared equals the computed total
// exactly. There is no tolerance: integer minor units never drift. A total
// that overflows never matches.
func ValidateTotalPrice(items []OrderItem, declared int64) bool {
	total, ok := TotalPrice(items)
	return ok && total == declared
}
