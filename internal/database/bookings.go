package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mealdesk/api/internal/enum"
)

const bookingColumns = `id, customer_id, kitchen_id, user_id, booking_date, meal_type, status,
	total_price, notes, confirmed_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.KitchenID,
		&b.UserID,
		&b.BookingDate,
		&b.MealType,
		&b.Status,
		&b.TotalPrice,
		&b.Notes,
		&b.ConfirmedAt,
		&b.CompletedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

const createBooking = `-- name: CreateBooking :one
INSERT INTO bookings (customer_id, kitchen_id, user_id, booking_date, meal_type, status, total_price, notes)
VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, $7)
RETURNING ` + bookingColumns

type CreateBookingParams struct {
	CustomerID  uuid.UUID
	KitchenID   uuid.UUID
	UserID      uuid.UUID
	BookingDate time.Time
	MealType    enum.MealType
	TotalPrice  int64
	Notes       pgtype.Text
}

// CreateBooking inserts a booking in its initial PENDING status.
func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	row := q.db.QueryRow(ctx, createBooking,
		arg.CustomerID,
		arg.KitchenID,
		arg.UserID,
		pgtype.Date{Time: arg.BookingDate, Valid: true},
		string(arg.MealType),
		arg.TotalPrice,
		arg.Notes,
	)
	return scanBooking(row)
}

const createBookingItem = `-- name: CreateBookingItem :one
INSERT INTO booking_items (booking_id, recipe_id, recipe_category, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, booking_id, recipe_id, recipe_category, quantity, unit_price, subtotal`

type CreateBookingItemParams struct {
	BookingID      uuid.UUID
	RecipeID       uuid.UUID
	RecipeCategory enum.RecipeCategory
	Quantity       int32
	UnitPrice      int64
	Subtotal       int64
}

func (q *Queries) CreateBookingItem(ctx context.Context, arg CreateBookingItemParams) (BookingItem, error) {
	row := q.db.QueryRow(ctx, createBookingItem,
		arg.BookingID,
		arg.RecipeID,
		string(arg.RecipeCategory),
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
	)
	var i BookingItem
	err := row.Scan(
		&i.ID,
		&i.BookingID,
		&i.RecipeID,
		&i.RecipeCategory,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
	)
	return i, err
}

const getBooking = `-- name: GetBooking :one
SELECT ` + bookingColumns + `
FROM bookings
WHERE id = $1`

func (q *Queries) GetBooking(ctx context.Context, id uuid.UUID) (Booking, error) {
	return scanBooking(q.db.QueryRow(ctx, getBooking, id))
}

const listBookings = `-- name: ListBookings :many
SELECT ` + bookingColumns + `
FROM bookings
WHERE ($1::uuid IS NULL OR kitchen_id = $1)
  AND ($2::uuid IS NULL OR customer_id = $2)
  AND ($3::uuid IS NULL OR user_id = $3)
  AND ($4::text IS NULL OR status = $4)
  AND ($5::text IS NULL OR meal_type = $5)
  AND ($6::date IS NULL OR booking_date >= $6)
  AND ($7::date IS NULL OR booking_date <= $7)
ORDER BY booking_date DESC, created_at DESC
LIMIT $8 OFFSET $9`

// ListBookingsParams filters are optional; unset (invalid) values match all
// rows.
type ListBookingsParams struct {
	KitchenID  pgtype.UUID
	CustomerID pgtype.UUID
	UserID     pgtype.UUID
	Status     pgtype.Text
	MealType   pgtype.Text
	FromDate   pgtype.Date
	ToDate     pgtype.Date
	Limit      int32
	Offset     int32
}

func (q *Queries) ListBookings(ctx context.Context, arg ListBookingsParams) ([]Booking, error) {
	rows, err := q.db.Query(ctx, listBookings,
		arg.KitchenID,
		arg.CustomerID,
		arg.UserID,
		arg.Status,
		arg.MealType,
		arg.FromDate,
		arg.ToDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const listBookingItems = `-- name: ListBookingItems :many
SELECT id, booking_id, recipe_id, recipe_category, quantity, unit_price, subtotal
FROM booking_items
WHERE booking_id = $1
ORDER BY id`

func (q *Queries) ListBookingItems(ctx context.Context, bookingID uuid.UUID) ([]BookingItem, error) {
	rows, err := q.db.Query(ctx, listBookingItems, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []BookingItem{}
	for rows.Next() {
		var i BookingItem
		if err := rows.Scan(
			&i.ID,
			&i.BookingID,
			&i.RecipeID,
			&i.RecipeCategory,
			&i.Quantity,
			&i.UnitPrice,
			&i.Subtotal,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateBookingStatus = `-- name: UpdateBookingStatus :one
UPDATE bookings
SET status = $2,
    confirmed_at = COALESCE($4, confirmed_at),
    completed_at = COALESCE($5, completed_at),
    updated_at = NOW()
WHERE id = $1 AND status = $3
RETURNING ` + bookingColumns

// UpdateBookingStatusParams carries the status the caller read. The update
// only applies if the row still has CurrentStatus, so a concurrent change
// surfaces as pgx.ErrNoRows instead of a lost update.
type UpdateBookingStatusParams struct {
	ID            uuid.UUID
	Status        enum.BookingStatus
	CurrentStatus enum.BookingStatus
	ConfirmedAt   pgtype.Timestamptz
	CompletedAt   pgtype.Timestamptz
}

func (q *Queries) UpdateBookingStatus(ctx context.Context, arg UpdateBookingStatusParams) (Booking, error) {
	row := q.db.QueryRow(ctx, updateBookingStatus,
		arg.ID,
		string(arg.Status),
		string(arg.CurrentStatus),
		arg.ConfirmedAt,
		arg.CompletedAt,
	)
	return scanBooking(row)
}
