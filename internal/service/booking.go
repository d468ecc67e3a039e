package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mealdesk/api/internal/auth"
	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/clock"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/logger"
	"github.com/mealdesk/api/internal/notify"
	"github.com/mealdesk/api/internal/ruleset"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// activeBookingKey is the partial unique index allowing one live booking per
// user, date and meal.
const activeBookingKey = "bookings_user_meal_active_key"

// Errors returned by the booking service.
var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrNoCustomer         = errors.New("user is not assigned to a customer")
	ErrInvalidMealType    = errors.New("invalid meal_type")
	ErrInvalidBookingDate = errors.New("invalid booking_date, expected YYYY-MM-DD")
	ErrBookingDateInPast  = errors.New("booking_date is in the past")
	ErrInvalidRecipeID    = errors.New("invalid recipe_id")
	ErrInvalidCategory    = errors.New("invalid recipe_category")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidUnitPrice   = errors.New("unit_price must be > 0")
	ErrTotalMismatch      = errors.New("total_price does not match the sum of item subtotals")
	ErrDuplicateBooking   = errors.New("a booking already exists for this date and meal")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrStatusConflict     = errors.New("booking status changed, please retry")
	ErrCancelNotAllowed   = errors.New("only pending bookings can be cancelled")
	ErrInvalidFilter      = errors.New("invalid filter")
)

// ItemsError reports every composition rule an order breaks.
type ItemsError struct {
	Errors []string
}

func (e *ItemsError) Error() string {
	return "booking items violate meal rules: " + strings.Join(e.Errors, "; ")
}

// TransitionError is a rejected status change. Allowed lists the statuses
// the booking could move to instead.
type TransitionError struct {
	Current   enum.BookingStatus
	Requested enum.BookingStatus
	Allowed   []enum.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.Current, e.Requested)
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is a connection pool: it runs queries and starts transactions.
// Satisfied by *pgxpool.Pool.
type Pool interface {
	TxBeginner
	database.DBTX
}

// BookingStore defines the DB methods the booking service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type BookingStore interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	CreateBooking(ctx context.Context, arg database.CreateBookingParams) (database.Booking, error)
	CreateBookingItem(ctx context.Context, arg database.CreateBookingItemParams) (database.BookingItem, error)
	GetBooking(ctx context.Context, id uuid.UUID) (database.Booking, error)
	ListBookings(ctx context.Context, arg database.ListBookingsParams) ([]database.Booking, error)
	ListBookingItems(ctx context.Context, bookingID uuid.UUID) ([]database.BookingItem, error)
	UpdateBookingStatus(ctx context.Context, arg database.UpdateBookingStatusParams) (database.Booking, error)
}

// NewBookingStore creates a BookingStore from a DBTX (pool or tx).
type NewBookingStore func(db database.DBTX) BookingStore

// CreateBookingRequest is the decoded input for creating a booking. Prices
// are in minor currency units.
type CreateBookingRequest struct {
	UserID      uuid.UUID
	CustomerID  uuid.UUID
	BookingDate string // YYYY-MM-DD
	MealType    string
	TotalPrice  int64
	Notes       string
	Items       []CreateBookingItemRequest
}

// CreateBookingItemRequest is a single line of the booking.
type CreateBookingItemRequest struct {
	RecipeID       string
	RecipeCategory string
	Quantity       int64
	UnitPrice      int64
}

// BookingResult is a booking with its items.
type BookingResult struct {
	Booking database.Booking
	Items   []database.BookingItem
}

// ListBookingsRequest holds optional filters. Zero values match all.
type ListBookingsRequest struct {
	KitchenID uuid.UUID
	Status    string
	MealType  string
	From      string // YYYY-MM-DD
	To        string // YYYY-MM-DD
	Limit     int32
	Offset    int32
}

// BookingService handles booking admission and lifecycle.
type BookingService struct {
	pool     Pool
	newStore NewBookingStore
	rules    ruleset.Provider
	clock    clock.Clock
	notifier notify.Notifier
}

// NewBookingService creates a new BookingService. A nil notifier discards
// events.
func NewBookingService(pool Pool, newStore NewBookingStore, rules ruleset.Provider, clk clock.Clock, notifier notify.Notifier) *BookingService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &BookingService{
		pool:     pool,
		newStore: newStore,
		rules:    rules,
		clock:    clk,
		notifier: notifier,
	}
}

// CreateBooking validates the order against the meal's rules and the
// declared total, then stores the booking and its items atomically in
// PENDING status.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingResult, error) {
	mealType, ok := enum.ParseMealType(req.MealType)
	if !ok {
		return nil, ErrInvalidMealType
	}

	date, err := time.Parse(dateLayout, req.BookingDate)
	if err != nil {
		return nil, ErrInvalidBookingDate
	}
	if date.Before(today(s.clock)) {
		return nil, ErrBookingDateInPast
	}

	if req.CustomerID == uuid.Nil {
		return nil, ErrNoCustomer
	}

	items, recipeIDs, err := ParseItems(req.Items)
	if err != nil {
		return nil, err
	}

	rule, err := s.rules.Rule(ctx, mealType)
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}
	res, err := booking.ValidateBookingItems(rule, items)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, &ItemsError{Errors: res.Errors}
	}
	if !booking.ValidateTotalPrice(items, req.TotalPrice) {
		return nil, ErrTotalMismatch
	}

	result, err := s.createBookingTx(ctx, req, date, mealType, items, recipeIDs)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.EventBookingCreated, result.Booking, "")
	return result, nil
}

// ParseItems checks the item contract and converts items for the validator.
// Quantities must fit the int4 column they are stored in.
func ParseItems(reqs []CreateBookingItemRequest) ([]booking.OrderItem, []uuid.UUID, error) {
	items := make([]booking.OrderItem, 0, len(reqs))
	ids := make([]uuid.UUID, 0, len(reqs))
	for i, it := range reqs {
		id, err := uuid.Parse(it.RecipeID)
		if err != nil {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidRecipeID)
		}
		cat, ok := enum.ParseRecipeCategory(it.RecipeCategory)
		if !ok {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidCategory)
		}
		if it.Quantity <= 0 || it.Quantity > math.MaxInt32 {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if it.UnitPrice <= 0 {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitPrice)
		}
		items = append(items, booking.OrderItem{
			RecipeID:  id.String(),
			Category:  cat,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
		ids = append(ids, id)
	}
	return items, ids, nil
}

func (s *BookingService) createBookingTx(ctx context.Context, req CreateBookingRequest, date time.Time, mealType enum.MealType, items []booking.OrderItem, recipeIDs []uuid.UUID) (*BookingResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	customer, err := store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	b, err := store.CreateBooking(ctx, database.CreateBookingParams{
		CustomerID:  customer.ID,
		KitchenID:   customer.KitchenID,
		UserID:      req.UserID,
		BookingDate: date,
		MealType:    mealType,
		TotalPrice:  req.TotalPrice,
		Notes:       notes,
	})
	if err != nil {
		if isDuplicateBooking(err) {
			return nil, ErrDuplicateBooking
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	result := &BookingResult{Booking: b, Items: make([]database.BookingItem, 0, len(items))}
	for i, it := range items {
		row, err := store.CreateBookingItem(ctx, database.CreateBookingItemParams{
			BookingID:      b.ID,
			RecipeID:       recipeIDs[i],
			RecipeCategory: it.Category,
			Quantity:       int32(it.Quantity),
			UnitPrice:      it.UnitPrice,
			Subtotal:       it.Subtotal(),
		})
		if err != nil {
			return nil, fmt.Errorf("item[%d]: create booking item: %w", i, err)
		}
		result.Items = append(result.Items, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// isDuplicateBooking checks for a unique violation (pgconn error code 23505)
// on the one-live-booking-per-meal index.
func isDuplicateBooking(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == activeBookingKey
	}
	return false
}

// ClampLimit applies the default and maximum page size for booking lists.
func ClampLimit(n int32) int32 {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// GetBooking returns a booking with its items if p may see it.
func (s *BookingService) GetBooking(ctx context.Context, p auth.Principal, id uuid.UUID) (*BookingResult, error) {
	store := s.newStore(s.pool)

	b, err := s.loadBooking(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if !CanView(p, b) {
		return nil, ErrBookingNotFound
	}

	items, err := store.ListBookingItems(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list booking items: %w", err)
	}
	return &BookingResult{Booking: b, Items: items}, nil
}

// ListBookings returns the bookings visible to p that match req.
func (s *BookingService) ListBookings(ctx context.Context, p auth.Principal, req ListBookingsRequest) ([]database.Booking, error) {
	params := ListScope(p)
	params.Limit = ClampLimit(req.Limit)
	if req.Offset > 0 {
		params.Offset = req.Offset
	}
	if req.KitchenID != uuid.Nil {
		if params.KitchenID.Valid && params.KitchenID.Bytes != req.KitchenID {
			return []database.Booking{}, nil
		}
		params.KitchenID = pgtype.UUID{Bytes: req.KitchenID, Valid: true}
	}

	if req.Status != "" {
		st, ok := enum.ParseBookingStatus(req.Status)
		if !ok {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidFilter, req.Status)
		}
		params.Status = pgtype.Text{String: string(st), Valid: true}
	}
	if req.MealType != "" {
		mt, ok := enum.ParseMealType(req.MealType)
		if !ok {
			return nil, fmt.Errorf("%w: meal_type %q", ErrInvalidFilter, req.MealType)
		}
		params.MealType = pgtype.Text{String: string(mt), Valid: true}
	}
	for _, f := range []struct {
		raw  string
		name string
		dst  *pgtype.Date
	}{
		{req.From, "from", &params.FromDate},
		{req.To, "to", &params.ToDate},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.Parse(dateLayout, f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidFilter, f.name)
		}
		*f.dst = pgtype.Date{Time: d, Valid: true}
	}

	bookings, err := s.newStore(s.pool).ListBookings(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatus moves a booking through the kitchen workflow. p must manage
// the booking's kitchen.
func (s *BookingService) UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status string) (database.Booking, error) {
	requested, ok := enum.ParseBookingStatus(status)
	if !ok {
		return database.Booking{}, ErrInvalidStatus
	}

	store := s.newStore(s.pool)
	b, err := s.loadBooking(ctx, store, id)
	if err != nil {
		return database.Booking{}, err
	}
	if !CanManage(p, b) {
		return database.Booking{}, ErrBookingNotFound
	}
	return s.transition(ctx, store, b, requested)
}

// CancelOwn lets the booking's owner withdraw it while it is still PENDING.
func (s *BookingService) CancelOwn(ctx context.Context, p auth.Principal, id uuid.UUID) (database.Booking, error) {
	store := s.newStore(s.pool)
	b, err := s.loadBooking(ctx, store, id)
	if err != nil {
		return database.Booking{}, err
	}
	if b.UserID != p.UserID {
		return database.Booking{}, ErrBookingNotFound
	}
	if b.Status != enum.BookingStatusPending {
		return database.Booking{}, ErrCancelNotAllowed
	}
	return s.transition(ctx, store, b, enum.BookingStatusCancelled)
}

func (s *BookingService) loadBooking(ctx context.Context, store BookingStore, id uuid.UUID) (database.Booking, error) {
	b, err := store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Booking{}, ErrBookingNotFound
		}
		return database.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// transition applies the state machine and persists the change only if the
// booking still has the status it was read with.
func (s *BookingService) transition(ctx context.Context, store BookingStore, b database.Booking, requested enum.BookingStatus) (database.Booking, error) {
	t := booking.ApplyTransition(b.Status, requested)
	if !t.Allowed {
		return database.Booking{}, &TransitionError{
			Current:   b.Status,
			Requested: requested,
			Allowed:   t.AllowedTransitions,
		}
	}

	params := database.UpdateBookingStatusParams{
		ID:            b.ID,
		Status:        requested,
		CurrentStatus: b.Status,
	}
	now := pgtype.Timestamptz{Time: s.clock.Now(), Valid: true}
	switch t.TimestampField {
	case booking.TimestampConfirmedAt:
		params.ConfirmedAt = now
	case booking.TimestampCompletedAt:
		params.CompletedAt = now
	}

	updated, err := store.UpdateBookingStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Booking{}, ErrStatusConflict
		}
		return database.Booking{}, fmt.Errorf("update booking status: %w", err)
	}

	s.publish(ctx, notify.EventBookingStatusChanged, updated, b.Status)
	return updated, nil
}

// publish sends a booking event. Delivery failures are logged only; the
// booking change is already committed.
func (s *BookingService) publish(ctx context.Context, eventType string, b database.Booking, from enum.BookingStatus) {
	e := notify.Event{
		Type:        eventType,
		BookingID:   b.ID,
		KitchenID:   b.KitchenID,
		CustomerID:  b.CustomerID,
		UserID:      b.UserID,
		BookingDate: b.BookingDate.Format(dateLayout),
		MealType:    b.MealType,
		From:        from,
		To:          b.Status,
		OccurredAt:  s.clock.Now(),
	}
	if err := s.notifier.BookingStatusChanged(ctx, e); err != nil {
		logger.FromCtx(ctx).Warn("booking event not delivered",
			zap.String("event", eventType),
			zap.String("booking_id", b.ID.String()),
			zap.Error(err),
		)
	}
}

// today is the current UTC date at midnight.
func today(clk clock.Clock) time.Time {
	now := clk.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
