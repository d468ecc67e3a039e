package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mealdesk/api/internal/auth"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/middleware"
)

const testSecret = "test-secret"

func token(t *testing.T, p auth.Principal) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, p)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	p := auth.Principal{UserID: uuid.New(), CustomerID: uuid.New(), Role: enum.UserRoleEndUser}

	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			t.Fatal("expected principal in context")
		}
		if got != p {
			t.Errorf("principal: got %+v, want %+v", got, p)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, p))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	refresh, _ := auth.GenerateRefreshToken(testSecret, uuid.New())

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"invalid token", "Bearer invalid-token"},
		{"refresh token", "Bearer " + refresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
			}
		})
	}
}

func kitchenRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.With(middleware.RequireKitchen).Get("/kitchens/{kid}/bookings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestRequireKitchen(t *testing.T) {
	kitchenID := uuid.New()
	tests := []struct {
		name string
		p    auth.Principal
		path string
		want int
	}{
		{"own kitchen", auth.Principal{UserID: uuid.New(), KitchenID: kitchenID, Role: enum.UserRoleKitchenAdmin}, kitchenID.String(), http.StatusOK},
		{"other kitchen", auth.Principal{UserID: uuid.New(), KitchenID: uuid.New(), Role: enum.UserRoleKitchenAdmin}, kitchenID.String(), http.StatusForbidden},
		{"super admin", auth.Principal{UserID: uuid.New(), Role: enum.UserRoleSuperAdmin}, kitchenID.String(), http.StatusOK},
		{"end user", auth.Principal{UserID: uuid.New(), KitchenID: kitchenID, Role: enum.UserRoleEndUser}, kitchenID.String(), http.StatusForbidden},
		{"bad id", auth.Principal{UserID: uuid.New(), Role: enum.UserRoleSuperAdmin}, "not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/kitchens/"+tt.path+"/bookings", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, tt.p))
			rr := httptest.NewRecorder()
			kitchenRouter().ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Authenticate(testSecret)(
		middleware.RequireRole(enum.UserRoleKitchenAdmin, enum.UserRoleSuperAdmin)(inner),
	)

	tests := []struct {
		role string
		want int
	}{
		{enum.UserRoleKitchenAdmin, http.StatusOK},
		{enum.UserRoleSuperAdmin, http.StatusOK},
		{enum.UserRoleCustomerAdmin, http.StatusForbidden},
		{enum.UserRoleEndUser, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("Authorization", "Bearer "+token(t, auth.Principal{UserID: uuid.New(), Role: tt.role}))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRequireRole_NoClaims(t *testing.T) {
	handler := middleware.RequireRole(enum.UserRoleSuperAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
