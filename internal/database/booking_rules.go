package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mealdesk/api/internal/enum"
)

const listBookingRuleLimits = `-- name: ListBookingRuleLimits :many
SELECT meal_type, recipe_category, min_count, max_count
FROM booking_rules
WHERE meal_type = $1
ORDER BY recipe_category`

func (q *Queries) ListBookingRuleLimits(ctx context.Context, mealType enum.MealType) ([]BookingRuleLimit, error) {
	return q.queryRuleLimits(ctx, listBookingRuleLimits, string(mealType))
}

const listAllBookingRuleLimits = `-- name: ListAllBookingRuleLimits :many
SELECT meal_type, recipe_category, min_count, max_count
FROM booking_rules
ORDER BY meal_type, recipe_category`

func (q *Queries) ListAllBookingRuleLimits(ctx context.Context) ([]BookingRuleLimit, error) {
	return q.queryRuleLimits(ctx, listAllBookingRuleLimits)
}

func (q *Queries) queryRuleLimits(ctx context.Context, sql string, args ...interface{}) ([]BookingRuleLimit, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []BookingRuleLimit{}
	for rows.Next() {
		var l BookingRuleLimit
		if err := rows.Scan(&l.MealType, &l.RecipeCategory, &l.MinCount, &l.MaxCount); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

const deleteBookingRule = `-- name: DeleteBookingRule :exec
DELETE FROM booking_rules
WHERE meal_type = $1`

func (q *Queries) DeleteBookingRule(ctx context.Context, mealType enum.MealType) error {
	_, err := q.db.Exec(ctx, deleteBookingRule, string(mealType))
	return err
}

const insertBookingRuleLimit = `-- name: InsertBookingRuleLimit :exec
INSERT INTO booking_rules (meal_type, recipe_category, min_count, max_count)
VALUES ($1, $2, $3, $4)`

type InsertBookingRuleLimitParams struct {
	MealType       enum.MealType
	RecipeCategory enum.RecipeCategory
	MinCount       int32
	MaxCount       pgtype.Int4
}

func (q *Queries) InsertBookingRuleLimit(ctx context.Context, arg InsertBookingRuleLimitParams) error {
	_, err := q.db.Exec(ctx, insertBookingRuleLimit,
		string(arg.MealType),
		string(arg.RecipeCategory),
		arg.MinCount,
		arg.MaxCount,
	)
	return err
}
