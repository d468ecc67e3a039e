package ruleset

import (
	"fmt"
	"os"

	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/enum"
	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk layout of a rules file:
//
//	rules:
//	  LUNCH:
//	    FIRST_COURSE: {min: 1, max: 1}
//	    BEVERAGE: {min: 0}
type fileFormat struct {
	Rules map[string]map[string]booking.Limit `yaml:"rules"`
}

// LoadFile reads and validates a YAML rules file.
func LoadFile(path string) (booking.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML rule table. Unknown meal types or categories and
// inconsistent limits are rejected.
func Parse(data []byte) (booking.Rules, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	rules := make(booking.Rules, len(f.Rules))
	for meal, limits := range f.Rules {
		mt, ok := enum.ParseMealType(meal)
		if !ok {
			return nil, fmt.Errorf("%w: unknown meal type %q", booking.ErrInvalidRule, meal)
		}
		r := booking.Rule{MealType: mt, Limits: make(map[enum.RecipeCategory]booking.Limit, len(limits))}
		for cat, l := range limits {
			c, ok := enum.ParseRecipeCategory(cat)
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown category %q", booking.ErrInvalidRule, mt, cat)
			}
			r.Limits[c] = l
		}
		if err := r.Check(); err != nil {
			return nil, err
		}
		rules[mt] = r
	}
	return rules, nil
}
