package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mealdesk/api/internal/auth"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/notify"
)

const testSecret = "ws-test-secret"

// mockClient creates a client without a real websocket connection.
func mockClient(hub *Hub, kitchenID uuid.UUID) *Client {
	return &Client{
		hub:       hub,
		kitchenID: kitchenID,
		send:      make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func roomSize(hub *Hub, kitchenID uuid.UUID) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.rooms[kitchenID])
}

func waitForRoom(t *testing.T, hub *Hub, kitchenID uuid.UUID, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if roomSize(hub, kitchenID) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s: got %d clients, want %d", kitchenID, roomSize(hub, kitchenID), n)
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	kitchenID := uuid.New()
	client := mockClient(hub, kitchenID)

	hub.register <- client
	waitForRoom(t, hub, kitchenID, 1)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if !hub.rooms[kitchenID][client] {
		t.Fatal("client not registered in kitchen room")
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := startHub(t)
	kitchenID := uuid.New()
	client1 := mockClient(hub, kitchenID)
	client2 := mockClient(hub, kitchenID)

	hub.register <- client1
	hub.register <- client2
	waitForRoom(t, hub, kitchenID, 2)

	hub.unregister <- client1
	waitForRoom(t, hub, kitchenID, 1)

	hub.unregister <- client2
	waitForRoom(t, hub, kitchenID, 0)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if _, ok := hub.rooms[kitchenID]; ok {
		t.Fatal("room should be deleted when last client unregisters")
	}
	if _, ok := <-client1.send; ok {
		t.Fatal("send channel should be closed after unregister")
	}
}

func TestBroadcastIsolatedPerKitchen(t *testing.T) {
	hub := startHub(t)
	kitchen1, kitchen2 := uuid.New(), uuid.New()
	client1 := mockClient(hub, kitchen1)
	client2 := mockClient(hub, kitchen2)
	hub.register <- client1
	hub.register <- client2
	waitForRoom(t, hub, kitchen1, 1)
	waitForRoom(t, hub, kitchen2, 1)

	payload := json.RawMessage(`{"booking_id":"b-1"}`)
	if err := hub.BroadcastToKitchen(context.Background(), kitchen1, Event{Type: "booking.created", Payload: payload}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if received.Type != "booking.created" {
			t.Errorf("type: got %q, want %q", received.Type, "booking.created")
		}
		if string(received.Payload) != string(payload) {
			t.Errorf("payload: got %s, want %s", received.Payload, payload)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not receive events for another kitchen")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBookingStatusChanged(t *testing.T) {
	hub := startHub(t)
	kitchenID := uuid.New()
	client := mockClient(hub, kitchenID)
	hub.register <- client
	waitForRoom(t, hub, kitchenID, 1)

	e := notify.Event{
		Type:      notify.EventBookingStatusChanged,
		BookingID: uuid.New(),
		KitchenID: kitchenID,
		MealType:  enum.MealTypeLunch,
		From:      enum.BookingStatusPending,
		To:        enum.BookingStatusConfirmed,
	}
	if err := hub.BookingStatusChanged(context.Background(), e); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case msg := <-client.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		var got notify.Event
		if err := json.Unmarshal(received.Payload, &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if received.Type != notify.EventBookingStatusChanged || got.BookingID != e.BookingID || got.To != enum.BookingStatusConfirmed {
			t.Errorf("unexpected event: %s", msg)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("client did not receive event")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	kitchenID := uuid.New()
	slow := &Client{hub: hub, kitchenID: kitchenID, send: make(chan []byte)} // unbuffered, never read
	hub.register <- slow
	waitForRoom(t, hub, kitchenID, 1)

	if err := hub.BroadcastToKitchen(context.Background(), kitchenID, Event{Type: "x"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	waitForRoom(t, hub, kitchenID, 0)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	kitchenID := uuid.New()
	client := mockClient(hub, kitchenID)
	hub.register <- client
	waitForRoom(t, hub, kitchenID, 1)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-client.send; ok {
		t.Fatal("client channel should be closed on shutdown")
	}
	if hub.join(mockClient(hub, kitchenID)) {
		t.Fatal("join should fail after shutdown")
	}
	if err := hub.BroadcastToKitchen(context.Background(), kitchenID, Event{Type: "x"}); err != nil {
		t.Fatalf("broadcast after shutdown: %v", err)
	}
}

func TestCanWatch(t *testing.T) {
	kitchenID := uuid.New()
	tests := []struct {
		name   string
		claims auth.Claims
		want   bool
	}{
		{"super admin any kitchen", auth.Claims{Role: enum.UserRoleSuperAdmin}, true},
		{"kitchen admin own kitchen", auth.Claims{Role: enum.UserRoleKitchenAdmin, KitchenID: kitchenID}, true},
		{"kitchen admin other kitchen", auth.Claims{Role: enum.UserRoleKitchenAdmin, KitchenID: uuid.New()}, false},
		{"end user", auth.Claims{Role: enum.UserRoleEndUser, KitchenID: kitchenID}, false},
		{"customer admin", auth.Claims{Role: enum.UserRoleCustomerAdmin}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canWatch(&tt.claims, kitchenID); got != tt.want {
				t.Errorf("canWatch: got %v, want %v", got, tt.want)
			}
		})
	}
}

func newWSServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ws/kitchens/{kid}/bookings", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, testSecret, w, r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, p auth.Principal) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, p)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func TestServeWS_Rejections(t *testing.T) {
	hub := startHub(t)
	srv := newWSServer(t, hub)
	kitchenID := uuid.New()

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing token", "/ws/kitchens/" + kitchenID.String() + "/bookings", http.StatusUnauthorized},
		{"bad token", "/ws/kitchens/" + kitchenID.String() + "/bookings?token=nope", http.StatusUnauthorized},
		{"bad kitchen id", "/ws/kitchens/abc/bookings?token=" + token(t, auth.Principal{UserID: uuid.New(), Role: enum.UserRoleSuperAdmin}), http.StatusBadRequest},
		{"other kitchen", "/ws/kitchens/" + kitchenID.String() + "/bookings?token=" + token(t, auth.Principal{
			UserID: uuid.New(), KitchenID: uuid.New(), Role: enum.UserRoleKitchenAdmin,
		}), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status: got %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestServeWS_ReceivesEvents(t *testing.T) {
	hub := startHub(t)
	srv := newWSServer(t, hub)
	kitchenID := uuid.New()

	tok := token(t, auth.Principal{UserID: uuid.New(), KitchenID: kitchenID, Role: enum.UserRoleKitchenAdmin})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/kitchens/" + kitchenID.String() + "/bookings?token=" + tok

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForRoom(t, hub, kitchenID, 1)

	e := notify.Event{Type: notify.EventBookingCreated, BookingID: uuid.New(), KitchenID: kitchenID, To: enum.BookingStatusPending}
	if err := hub.BookingStatusChanged(context.Background(), e); err != nil {
		t.Fatalf("notify: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var received Event
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if received.Type != notify.EventBookingCreated {
		t.Errorf("type: got %q, want %q", received.Type, notify.EventBookingCreated)
	}
}

func TestServeWS_AfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	srv := newWSServer(t, hub)
	kitchenID := uuid.New()
	tok := token(t, auth.Principal{UserID: uuid.New(), Role: enum.UserRoleSuperAdmin})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/kitchens/" + kitchenID.String() + "/bookings?token=" + tok

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("read: got %v, want going-away close", err)
	}
	if roomSize(hub, kitchenID) != 0 {
		t.Fatal("client should not join a stopped hub")
	}
}
