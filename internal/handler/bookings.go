package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mealdesk/api/internal/auth"
	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/database"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/middleware"
	"github.com/mealdesk/api/internal/service"
)

// BookingServicer defines the service methods needed by booking handlers.
// Satisfied by *service.BookingService; narrow interface for testability.
type BookingServicer interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*service.BookingResult, error)
	GetBooking(ctx context.Context, p auth.Principal, id uuid.UUID) (*service.BookingResult, error)
	ListBookings(ctx context.Context, p auth.Principal, req service.ListBookingsRequest) ([]database.Booking, error)
	UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status string) (database.Booking, error)
	CancelOwn(ctx context.Context, p auth.Principal, id uuid.UUID) (database.Booking, error)
}

// BookingHandler handles booking endpoints.
type BookingHandler struct {
	svc BookingServicer
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(svc BookingServicer) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// RegisterRoutes registers booking endpoints. Expected mount: /bookings
func (h *BookingHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.UserRoleEndUser, enum.UserRoleCustomerAdmin)).Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.Cancel)
}

// RegisterKitchenRoutes registers the kitchen workflow endpoints. Expected
// mount: /kitchen, behind a KITCHEN_ADMIN/SUPER_ADMIN role check.
func (h *BookingHandler) RegisterKitchenRoutes(r chi.Router) {
	r.Patch("/bookings/{id}/status", h.UpdateStatus)
}

// RegisterKitchenBoardRoutes registers the per-kitchen listing. Expected
// mount: /kitchens/{kid}, behind RequireKitchen.
func (h *BookingHandler) RegisterKitchenBoardRoutes(r chi.Router) {
	r.Get("/bookings", h.List)
}

// --- Request / Response types ---

type createBookingRequest struct {
	BookingDate string                     `json:"booking_date"`
	MealType    string                     `json:"meal_type"`
	TotalPrice  int64                      `json:"total_price"`
	Notes       string                     `json:"notes"`
	Items       []createBookingItemRequest `json:"items"`
}

type createBookingItemRequest struct {
	RecipeID       string `json:"recipe_id"`
	RecipeCategory string `json:"recipe_category"`
	Quantity       int64  `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
}

type bookingResponse struct {
	ID                 uuid.UUID             `json:"id"`
	CustomerID         uuid.UUID             `json:"customer_id"`
	KitchenID          uuid.UUID             `json:"kitchen_id"`
	UserID             uuid.UUID             `json:"user_id"`
	BookingDate        string                `json:"booking_date"`
	MealType           enum.MealType         `json:"meal_type"`
	Status             enum.BookingStatus    `json:"status"`
	AllowedTransitions []enum.BookingStatus  `json:"allowed_transitions"`
	TotalPrice         int64                 `json:"total_price"`
	TotalPriceDisplay  string                `json:"total_price_display"`
	Notes              *string               `json:"notes"`
	ConfirmedAt        *time.Time            `json:"confirmed_at"`
	CompletedAt        *time.Time            `json:"completed_at"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	Items              []bookingItemResponse `json:"items,omitempty"`
}

type bookingItemResponse struct {
	ID              uuid.UUID           `json:"id"`
	RecipeID        uuid.UUID           `json:"recipe_id"`
	RecipeCategory  enum.RecipeCategory `json:"recipe_category"`
	Quantity        int32               `json:"quantity"`
	UnitPrice       int64               `json:"unit_price"`
	Subtotal        int64               `json:"subtotal"`
	SubtotalDisplay string              `json:"subtotal_display"`
}

type bookingListResponse struct {
	Bookings []bookingResponse `json:"bookings"`
	Limit    int32             `json:"limit"`
	Offset   int32             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.BookingDate == "" || req.MealType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "booking_date and meal_type are required"})
		return
	}

	result, err := h.svc.CreateBooking(r.Context(), service.CreateBookingRequest{
		UserID:      p.UserID,
		CustomerID:  p.CustomerID,
		BookingDate: req.BookingDate,
		MealType:    req.MealType,
		TotalPrice:  req.TotalPrice,
		Notes:       req.Notes,
		Items:       toServiceItems(req.Items),
	})
	if err != nil {
		writeServiceError(w, r, "create booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(result.Booking, result.Items))
}

func toServiceItems(reqs []createBookingItemRequest) []service.CreateBookingItemRequest {
	items := make([]service.CreateBookingItemRequest, len(reqs))
	for i, it := range reqs {
		items[i] = service.CreateBookingItemRequest{
			RecipeID:       it.RecipeID,
			RecipeCategory: it.RecipeCategory,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
		}
	}
	return items
}

// List handles GET /bookings and GET /kitchens/{kid}/bookings.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	q := r.URL.Query()
	var limit, offset int32
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 32); err == nil && v > 0 {
			limit = int32(v)
		}
	}
	limit = service.ClampLimit(limit)
	if s := q.Get("offset"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 32); err == nil && v >= 0 {
			offset = int32(v)
		}
	}

	req := service.ListBookingsRequest{
		Status:   q.Get("status"),
		MealType: q.Get("meal_type"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Limit:    limit,
		Offset:   offset,
	}
	if s := chi.URLParam(r, "kid"); s != "" {
		kid, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kitchen ID"})
			return
		}
		req.KitchenID = kid
	}

	bookings, err := h.svc.ListBookings(r.Context(), p, req)
	if err != nil {
		writeServiceError(w, r, "list bookings", err)
		return
	}

	resp := make([]bookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b, nil)
	}
	writeJSON(w, http.StatusOK, bookingListResponse{Bookings: resp, Limit: limit, Offset: offset})
}

// Get handles GET /bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := principalAndID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetBooking(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, "get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(result.Booking, result.Items))
}

// Cancel handles POST /bookings/{id}/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, id, ok := principalAndID(w, r)
	if !ok {
		return
	}

	updated, err := h.svc.CancelOwn(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, "cancel booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(updated, nil))
}

// UpdateStatus handles PATCH /kitchen/bookings/{id}/status.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, id, ok := principalAndID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), p, id, req.Status)
	if err != nil {
		writeServiceError(w, r, "update booking status", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(updated, nil))
}

// --- Helpers ---

func principalAndID(w http.ResponseWriter, r *http.Request) (auth.Principal, uuid.UUID, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return auth.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid booking ID"})
		return auth.Principal{}, uuid.Nil, false
	}
	return p, id, true
}

// badRequestErrors are service errors caused by the caller's input.
var badRequestErrors = []error{
	service.ErrNoCustomer,
	service.ErrInvalidMealType,
	service.ErrInvalidBookingDate,
	service.ErrBookingDateInPast,
	service.ErrInvalidRecipeID,
	service.ErrInvalidCategory,
	service.ErrInvalidQuantity,
	service.ErrInvalidUnitPrice,
	service.ErrTotalMismatch,
	service.ErrInvalidStatus,
	service.ErrCancelNotAllowed,
	service.ErrInvalidFilter,
}

// writeServiceError maps booking service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var itemsErr *service.ItemsError
	if errors.As(err, &itemsErr) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "booking items violate meal rules",
			"errors": itemsErr.Errors,
		})
		return
	}

	var transErr *service.TransitionError
	if errors.As(err, &transErr) {
		allowed := transErr.Allowed
		if allowed == nil {
			allowed = []enum.BookingStatus{}
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":               transErr.Error(),
			"current_status":      transErr.Current,
			"requested_status":    transErr.Requested,
			"allowed_transitions": allowed,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "booking not found"})
		return
	case errors.Is(err, service.ErrCustomerNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		return
	case errors.Is(err, service.ErrDuplicateBooking), errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	// A meal type without rules is a configuration defect, not a client error.
	if errors.Is(err, booking.ErrRuleNotFound) {
		writeInternalError(w, r, op+": booking rules missing", err)
		return
	}
	writeInternalError(w, r, op, err)
}

func toBookingResponse(b database.Booking, items []database.BookingItem) bookingResponse {
	resp := bookingResponse{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		KitchenID:          b.KitchenID,
		UserID:             b.UserID,
		BookingDate:        b.BookingDate.Format("2006-01-02"),
		MealType:           b.MealType,
		Status:             b.Status,
		AllowedTransitions: booking.AllowedTransitions(b.Status),
		TotalPrice:         b.TotalPrice,
		TotalPriceDisplay:  formatAmount(b.TotalPrice),
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.Notes.Valid {
		resp.Notes = &b.Notes.String
	}
	if b.ConfirmedAt.Valid {
		resp.ConfirmedAt = &b.ConfirmedAt.Time
	}
	if b.CompletedAt.Valid {
		resp.CompletedAt = &b.CompletedAt.Time
	}
	if items != nil {
		resp.Items = make([]bookingItemResponse, len(items))
		for i, it := range items {
			resp.Items[i] = bookingItemResponse{
				ID:              it.ID,
				RecipeID:        it.RecipeID,
				RecipeCategory:  it.RecipeCategory,
				Quantity:        it.Quantity,
				UnitPrice:       it.UnitPrice,
				Subtotal:        it.Subtotal,
				SubtotalDisplay: formatAmount(it.Subtotal),
			}
		}
	}
	return resp
}
