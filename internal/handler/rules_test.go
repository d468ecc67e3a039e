package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mealdesk/api/internal/auth"
	"github.com/mealdesk/api/internal/booking"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/handler"
	"github.com/mealdesk/api/internal/middleware"
	"github.com/mealdesk/api/internal/ruleset"
)

type mockRuleEditor struct {
	replaceFn func(ctx context.Context, r booking.Rule) error
}

func (m *mockRuleEditor) Replace(ctx context.Context, r booking.Rule) error {
	return m.replaceFn(ctx, r)
}

type failingRules struct{ err error }

func (f failingRules) Rule(context.Context, enum.MealType) (booking.Rule, error) {
	return booking.Rule{}, f.err
}

func (f failingRules) All(context.Context) ([]booking.Rule, error) { return nil, f.err }

func testRuleProvider(t *testing.T) *ruleset.Static {
	t.Helper()
	p, err := ruleset.NewStatic(booking.Rules{
		enum.MealTypeLunch: {
			MealType: enum.MealTypeLunch,
			Limits: map[enum.RecipeCategory]booking.Limit{
				enum.RecipeCategoryFirstCourse: {Min: 1, Max: booking.Max(1)},
				enum.RecipeCategoryDessert:     {Min: 0, Max: booking.Max(1)},
				enum.RecipeCategoryBeverage:    {Min: 0},
			},
		},
		enum.MealTypeBreakfast: {
			MealType: enum.MealTypeBreakfast,
			Limits: map[enum.RecipeCategory]booking.Limit{
				enum.RecipeCategoryBeverage: {Min: 1, Max: booking.Max(2)},
			},
		},
	})
	if err != nil {
		t.Fatalf("static rules: %v", err)
	}
	return p
}

func setupRuleRouter(rules handler.RuleReader, editor handler.RuleEditor) *chi.Mux {
	h := handler.NewRuleHandler(rules, editor)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.Route("/booking-rules", h.RegisterRoutes)
	return r
}

func superAdmin() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Role: enum.UserRoleSuperAdmin}
}

func TestRules_List(t *testing.T) {
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "GET", "/booking-rules", nil, diner())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var rules []booking.Rule
	decodeInto(t, rr, &rules)
	if len(rules) != 2 {
		t.Fatalf("rules: got %d, want 2", len(rules))
	}
	if rules[0].MealType != enum.MealTypeBreakfast || rules[1].MealType != enum.MealTypeLunch {
		t.Errorf("order: got %s, %s", rules[0].MealType, rules[1].MealType)
	}
}

func TestRules_ListError(t *testing.T) {
	rr := doAuthRequest(t, setupRuleRouter(failingRules{errors.New("db down")}, nil), "GET", "/booking-rules", nil, diner())

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestRules_Get(t *testing.T) {
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "GET", "/booking-rules/LUNCH", nil, diner())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var rule booking.Rule
	decodeInto(t, rr, &rule)
	l, ok := rule.Limits[enum.RecipeCategoryFirstCourse]
	if !ok || l.Min != 1 || l.Max == nil || *l.Max != 1 {
		t.Errorf("FIRST_COURSE limit: got %+v", l)
	}
	if bev := rule.Limits[enum.RecipeCategoryBeverage]; bev.Max != nil {
		t.Errorf("BEVERAGE max should be unbounded, got %d", *bev.Max)
	}
}

func TestRules_GetUnconfigured(t *testing.T) {
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "GET", "/booking-rules/DINNER", nil, diner())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestRules_GetInvalidMealType(t *testing.T) {
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "GET", "/booking-rules/BRUNCH", nil, diner())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRules_Validate(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]interface{}
		wantValid  bool
		wantErrs   int
		wantTotal  float64
		wantPrices interface{}
	}{
		{
			name: "valid lunch with matching price",
			body: map[string]interface{}{
				"total_price": 1200,
				"items": []map[string]interface{}{
					{"recipe_id": uuid.NewString(), "recipe_category": "FIRST_COURSE", "quantity": 1, "unit_price": 800},
					{"recipe_id": uuid.NewString(), "recipe_category": "DESSERT", "quantity": 1, "unit_price": 400},
				},
			},
			wantValid: true, wantErrs: 0, wantTotal: 1200, wantPrices: true,
		},
		{
			name: "valid composition, wrong price",
			body: map[string]interface{}{
				"total_price": 1000,
				"items": []map[string]interface{}{
					{"recipe_id": uuid.NewString(), "recipe_category": "FIRST_COURSE", "quantity": 1, "unit_price": 800},
				},
			},
			wantValid: false, wantErrs: 0, wantTotal: 800, wantPrices: false,
		},
		{
			name: "two first courses and a foreign category",
			body: map[string]interface{}{
				"items": []map[string]interface{}{
					{"recipe_id": uuid.NewString(), "recipe_category": "FIRST_COURSE", "quantity": 2, "unit_price": 800},
					{"recipe_id": uuid.NewString(), "recipe_category": "EXTRA", "quantity": 1, "unit_price": 100},
				},
			},
			wantValid: false, wantErrs: 2, wantTotal: 1700, wantPrices: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "POST", "/booking-rules/LUNCH/validate", tt.body, diner())
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
			}
			resp := decodeResponse(t, rr)
			if resp["valid"] != tt.wantValid {
				t.Errorf("valid: got %v, want %v", resp["valid"], tt.wantValid)
			}
			if errs, _ := resp["errors"].([]interface{}); len(errs) != tt.wantErrs {
				t.Errorf("errors: got %v, want %d entries", resp["errors"], tt.wantErrs)
			}
			if resp["computed_total"] != tt.wantTotal {
				t.Errorf("computed_total: got %v, want %v", resp["computed_total"], tt.wantTotal)
			}
			if resp["price_matches"] != tt.wantPrices {
				t.Errorf("price_matches: got %v, want %v", resp["price_matches"], tt.wantPrices)
			}
		})
	}
}

func TestRules_ValidateUnknownCategory(t *testing.T) {
	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"recipe_id": uuid.NewString(), "recipe_category": "SOUP", "quantity": 1, "unit_price": 100},
		},
	}
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "POST", "/booking-rules/LUNCH/validate", body, diner())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRules_ValidateRejectsBadItems(t *testing.T) {
	line := func(qty, price int64) map[string]interface{} {
		return map[string]interface{}{"recipe_id": uuid.NewString(), "recipe_category": "FIRST_COURSE", "quantity": qty, "unit_price": price}
	}
	tests := []struct {
		name  string
		items []map[string]interface{}
	}{
		// 2 + (-1) would satisfy "exactly 1" if summed blindly.
		{"negative quantity", []map[string]interface{}{line(2, 800), line(-1, 800)}},
		{"zero quantity", []map[string]interface{}{line(0, 800)}},
		{"quantity beyond int4", []map[string]interface{}{line(1<<32+1, 1)}},
		{"zero unit price", []map[string]interface{}{line(1, 0)}},
		{"bad recipe id", []map[string]interface{}{{"recipe_id": "r1", "recipe_category": "FIRST_COURSE", "quantity": 1, "unit_price": 800}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]interface{}{"items": tt.items}
			rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "POST", "/booking-rules/LUNCH/validate", body, diner())
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestRules_ValidateTotalOverflow(t *testing.T) {
	body := map[string]interface{}{
		"total_price": 0,
		"items": []map[string]interface{}{
			{"recipe_id": uuid.NewString(), "recipe_category": "FIRST_COURSE", "quantity": 1, "unit_price": 800},
			{"recipe_id": uuid.NewString(), "recipe_category": "BEVERAGE", "quantity": 1 << 31 - 1, "unit_price": int64(1) << 62},
		},
	}
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "POST", "/booking-rules/LUNCH/validate", body, diner())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestRules_ReplaceNotMountedWithoutEditor(t *testing.T) {
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), nil), "PUT", "/booking-rules/LUNCH",
		map[string]interface{}{"limits": map[string]interface{}{}}, superAdmin())

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestRules_Replace(t *testing.T) {
	var got booking.Rule
	editor := &mockRuleEditor{
		replaceFn: func(_ context.Context, r booking.Rule) error {
			got = r
			return nil
		},
	}

	body := map[string]interface{}{
		"limits": map[string]interface{}{
			"SECOND_COURSE": map[string]interface{}{"min": 1, "max": 1},
			"BEVERAGE":    map[string]interface{}{"min": 0, "max": nil},
		},
	}
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), editor), "PUT", "/booking-rules/DINNER", body, superAdmin())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got.MealType != enum.MealTypeDinner {
		t.Errorf("meal type: got %s", got.MealType)
	}
	if l := got.Limits[enum.RecipeCategorySecondCourse]; l.Min != 1 || l.Max == nil || *l.Max != 1 {
		t.Errorf("SECOND_COURSE: got %+v", l)
	}
	if l, ok := got.Limits[enum.RecipeCategoryBeverage]; !ok || l.Max != nil {
		t.Errorf("BEVERAGE: got %+v", l)
	}
}

func TestRules_ReplaceInvalid(t *testing.T) {
	editor := &mockRuleEditor{
		replaceFn: func(_ context.Context, r booking.Rule) error {
			return r.Check()
		},
	}

	body := map[string]interface{}{
		"limits": map[string]interface{}{
			"DESSERT": map[string]interface{}{"min": 2, "max": 1},
		},
	}
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), editor), "PUT", "/booking-rules/LUNCH", body, superAdmin())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestRules_ReplaceEmptyLimits(t *testing.T) {
	editor := &mockRuleEditor{
		replaceFn: func(_ context.Context, r booking.Rule) error {
			return r.Check()
		},
	}

	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), editor), "PUT", "/booking-rules/LUNCH",
		map[string]interface{}{"limits": map[string]interface{}{}}, superAdmin())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestRules_ReplaceStoreError(t *testing.T) {
	editor := &mockRuleEditor{
		replaceFn: func(context.Context, booking.Rule) error {
			return fmt.Errorf("commit tx: %w", errors.New("connection reset"))
		},
	}

	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), editor), "PUT", "/booking-rules/LUNCH",
		map[string]interface{}{"limits": map[string]interface{}{}}, superAdmin())

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestRules_ReplaceRequiresSuperAdmin(t *testing.T) {
	editor := &mockRuleEditor{}
	rr := doAuthRequest(t, setupRuleRouter(testRuleProvider(t), editor), "PUT", "/booking-rules/LUNCH",
		map[string]interface{}{"limits": map[string]interface{}{}}, kitchenAdmin(uuid.New()))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
