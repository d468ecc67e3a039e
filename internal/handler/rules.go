package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/middleware"
	"github.com/mealdesk/api/internal/service"
)

// RuleReader is the read side of the booking rule table.
// Satisfied by ruleset.Provider.
type RuleReader interface {
	Rule(ctx context.Context, mealType enum.MealType) (booking.Rule, error)
	All(ctx context.Context) ([]booking.Rule, error)
}

// RuleEditor replaces the rule for one meal type.
// Satisfied by *ruleset.Service.
type RuleEditor interface {
	Replace(ctx context.Context, r booking.Rule) error
}

// RuleHandler serves the booking rule table. Editing is only available when
// the rules live in the database.
type RuleHandler struct {
	rules  RuleReader
	editor RuleEditor
}

// NewRuleHandler creates a new RuleHandler. editor may be nil.
func NewRuleHandler(rules RuleReader, editor RuleEditor) *RuleHandler {
	return &RuleHandler{rules: rules, editor: editor}
}

// RegisterRoutes registers rule endpoints. Expected mount: /booking-rules
func (h *RuleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{mealType}", h.Get)
	r.Post("/{mealType}/validate", h.Validate)
	if h.editor != nil {
		r.With(middleware.RequireRole(enum.UserRoleSuperAdmin)).Put("/{mealType}", h.Replace)
	}
}

// --- Request / Response types ---

type ruleRequest struct {
	Limits map[enum.RecipeCategory]booking.Limit `json:"limits"`
}

type validateRequest struct {
	TotalPrice *int64                     `json:"total_price"`
	Items      []createBookingItemRequest `json:"items"`
}

type validateResponse struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors"`
	ComputedTotal int64    `json:"computed_total"`
	PriceMatches  *bool    `json:"price_matches,omitempty"`
}

// --- Handlers ---

// List handles GET /booking-rules.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.All(r.Context())
	if err != nil {
		writeInternalError(w, r, "list booking rules", err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// Get handles GET /booking-rules/{mealType}.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	mealType, ok := mealTypeParam(w, r)
	if !ok {
		return
	}
	rule, err := h.rules.Rule(r.Context(), mealType)
	if err != nil {
		if errors.Is(err, booking.ErrRuleNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rule configured for " + string(mealType)})
			return
		}
		writeInternalError(w, r, "get booking rule", err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// Replace handles PUT /booking-rules/{mealType}.
func (h *RuleHandler) Replace(w http.ResponseWriter, r *http.Request) {
	mealType, ok := mealTypeParam(w, r)
	if !ok {
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rule := booking.Rule{MealType: mealType, Limits: req.Limits}
	if err := h.editor.Replace(r.Context(), rule); err != nil {
		if errors.Is(err, booking.ErrInvalidRule) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeInternalError(w, r, "replace booking rule", err)
		return
	}
	if rule.Limits == nil {
		rule.Limits = map[enum.RecipeCategory]booking.Limit{}
	}
	writeJSON(w, http.StatusOK, rule)
}

// Validate handles POST /booking-rules/{mealType}/validate. It runs the
// composition and price checks without creating a booking.
func (h *RuleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	mealType, ok := mealTypeParam(w, r)
	if !ok {
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Same item contract as POST /bookings.
	items, _, err := service.ParseItems(toServiceItems(req.Items))
	if err != nil {
		writeServiceError(w, r, "validate booking items", err)
		return
	}

	rule, err := h.rules.Rule(r.Context(), mealType)
	if err != nil {
		if errors.Is(err, booking.ErrRuleNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rule configured for " + string(mealType)})
			return
		}
		writeInternalError(w, r, "validate booking items", err)
		return
	}

	res, err := booking.ValidateBookingItems(rule, items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	total, ok := booking.TotalPrice(items)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item subtotals overflow"})
		return
	}

	resp := validateResponse{
		Valid:         res.Valid,
		Errors:        res.Errors,
		ComputedTotal: total,
	}
	if req.TotalPrice != nil {
		match := booking.ValidateTotalPrice(items, *req.TotalPrice)
		resp.PriceMatches = &match
		if !match {
			resp.Valid = false
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func mealTypeParam(w http.ResponseWriter, r *http.Request) (enum.MealType, bool) {
	mt, ok := enum.ParseMealType(chi.URLParam(r, "mealType"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid meal type"})
		return "", false
	}
	return mt, true
}
