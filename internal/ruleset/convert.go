package ruleset

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
)

// fromRows groups booking_rules rows into rules keyed by meal type.
func fromRows(rows []database.BookingRuleLimit) booking.Rules {
	rules := booking.Rules{}
	for _, row := range rows {
		r, ok := rules[row.MealType]
		if !ok {
			r = booking.Rule{MealType: row.MealType, Limits: map[enum.RecipeCategory]booking.Limit{}}
		}
		l := booking.Limit{Min: int(row.MinCount)}
		if row.MaxCount.Valid {
			l.Max = booking.Max(int(row.MaxCount.Int32))
		}
		r.Limits[row.RecipeCategory] = l
		rules[row.MealType] = r
	}
	return rules
}

// toParams flattens a rule into insert params, in category order.
func toParams(r booking.Rule) []database.InsertBookingRuleLimitParams {
	var out []database.InsertBookingRuleLimitParams
	for _, cat := range enum.RecipeCategories {
		l, ok := r.Limits[cat]
		if !ok {
			continue
		}
		p := database.InsertBookingRuleLimitParams{
			MealType:       r.MealType,
			RecipeCategory: cat,
			MinCount:       int32(l.Min),
		}
		if l.Max != nil {
			p.MaxCount = pgtype.Int4{Int32: int32(*l.Max), Valid: true}
		}
		out = append(out, p)
	}
	return out
}
