// Package ruleset supplies booking rules to the booking service, either from
// a static YAML file or from the booking_rules table behind a TTL cache.
package ruleset

import (
	"context"
	"sort"

	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/enum"
)

// Provider returns the rule configured for a meal type. A meal type with no
// rule yields booking.ErrRuleNotFound.
type Provider interface {
	Rule(ctx context.Context, mealType enum.MealType) (booking.Rule, error)
	All(ctx context.Context) ([]booking.Rule, error)
}

// Static serves a fixed rule table.
type Static struct {
	rules booking.Rules
}

// NewStatic validates every rule and returns a provider over them.
func NewStatic(rules booking.Rules) (*Static, error) {
	for _, r := range rules {
		if err := r.Check(); err != nil {
			return nil, err
		}
	}
	return &Static{rules: rules}, nil
}

func (s *Static) Rule(_ context.Context, mealType enum.MealType) (booking.Rule, error) {
	return s.rules.Get(mealType)
}

func (s *Static) All(_ context.Context) ([]booking.Rule, error) {
	return sorted(s.rules), nil
}

// sorted returns rules in meal type declaration order.
func sorted(rules booking.Rules) []booking.Rule {
	out := make([]booking.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, r)
	}
	order := make(map[enum.MealType]int, len(enum.MealTypes))
	for i, m := range enum.MealTypes {
		order[m] = i
	}
	sort.Slice(out, func(i, j int) bool {
		return order[out[i].MealType] < order[out[j].MealType]
	})
	return out
}
