package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mealdesk/api/internal/enum"
)

type Kitchen struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	ID        uuid.UUID `json:"id"`
	KitchenID uuid.UUID `json:"kitchen_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID             uuid.UUID   `json:"id"`
	CustomerID     pgtype.UUID `json:"customer_id"`
	KitchenID      pgtype.UUID `json:"kitchen_id"`
	Email          string      `json:"email"`
	HashedPassword string      `json:"hashed_password"`
	FullName       string      `json:"full_name"`
	Role           string      `json:"role"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
}

type Booking struct {
	ID          uuid.UUID          `json:"id"`
	CustomerID  uuid.UUID          `json:"customer_id"`
	KitchenID   uuid.UUID          `json:"kitchen_id"`
	UserID      uuid.UUID          `json:"user_id"`
	BookingDate time.Time          `json:"booking_date"`
	MealType    enum.MealType      `json:"meal_type"`
	Status      enum.BookingStatus `json:"status"`
	TotalPrice  int64              `json:"total_price"`
	Notes       pgtype.Text        `json:"notes"`
	ConfirmedAt pgtype.Timestamptz `json:"confirmed_at"`
	CompletedAt pgtype.Timestamptz `json:"completed_at"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type BookingItem struct {
	ID             uuid.UUID           `json:"id"`
	BookingID      uuid.UUID           `json:"booking_id"`
	RecipeID       uuid.UUID           `json:"recipe_id"`
	RecipeCategory enum.RecipeCategory `json:"recipe_category"`
	Quantity       int32               `json:"quantity"`
	UnitPrice      int64               `json:"unit_price"`
	Subtotal       int64               `json:"subtotal"`
}

type BookingRuleLimit struct {
	MealType       enum.MealType       `json:"meal_type"`
	RecipeCategory enum.RecipeCategory `json:"recipe_category"`
	MinCount       int32               `json:"min_count"`
	MaxCount       pgtype.Int4         `json:"max_count"`
}
