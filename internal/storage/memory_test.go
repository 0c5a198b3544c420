package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xaenox/support-bot/internal/models"
)

func TestClaimChatConditional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := s.ClaimChat(ctx, 100, 1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatal("pending chat should be claimable")
	}

	// A second claim must not match the already bound row.
	claimed, err = s.ClaimChat(ctx, 100, 2)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("bound chat reported claimable")
	}

	chat, err := s.GetChat(ctx, 100)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if chat.ManagerID != 1 {
		t.Errorf("chat bound to %d, want the first claimer", chat.ManagerID)
	}

	if claimed, _ := s.ClaimChat(ctx, 404, 1); claimed {
		t.Error("missing chat reported claimable")
	}
}

func TestCloseKeepsManagerBinding(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.ClaimChat(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	closed, err := s.CloseChat(ctx, 100)
	if err != nil || !closed {
		t.Fatalf("close: %v (closed=%v)", err, closed)
	}

	chat, err := s.GetChat(ctx, 100)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if chat.Status != models.ChatClosed {
		t.Errorf("status=%s, want closed", chat.Status)
	}
	if chat.ManagerID != 1 {
		t.Errorf("close cleared the manager binding, got %d", chat.ManagerID)
	}

	reopened, err := s.ReopenChat(ctx, 100, "alice")
	if err != nil || !reopened {
		t.Fatalf("reopen: %v (reopened=%v)", err, reopened)
	}
	chat, _ = s.GetChat(ctx, 100)
	if chat.ManagerID != 0 {
		t.Errorf("reopen kept the manager binding, got %d", chat.ManagerID)
	}
}

func TestDecrementManagerLoadFloor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.UpsertManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.DecrementManagerLoad(ctx, 1); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	m, err := s.GetManager(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.ActiveChats != 0 {
		t.Errorf("active=%d after decrement at zero, want 0", m.ActiveChats)
	}
}

func TestUpdateChatContactPartial(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateChatContact(ctx, 100, "Alice", "+1234", "alice"); err != nil {
		t.Fatalf("first update: %v", err)
	}
	// Empty fields leave earlier values alone.
	if err := s.UpdateChatContact(ctx, 100, "", "+5678", ""); err != nil {
		t.Fatalf("second update: %v", err)
	}

	chat, err := s.GetChat(ctx, 100)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if chat.ClientName != "Alice" {
		t.Errorf("name=%q, want Alice", chat.ClientName)
	}
	if chat.ClientPhone != "+5678" {
		t.Errorf("phone=%q, want +5678", chat.ClientPhone)
	}

	if err := s.UpdateChatContact(ctx, 404, "X", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown client: got %v, want ErrNotFound", err)
	}
}

func TestClientIDByUsername(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	id, err := s.ClientIDByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != 100 {
		t.Errorf("id=%d, want 100", id)
	}

	if _, err := s.ClientIDByUsername(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown username: got %v, want ErrNotFound", err)
	}
}

func TestLeastLoadedAvailable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if _, err := s.LeastLoadedAvailable(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty roster: got %v, want ErrNotFound", err)
	}

	for id := int64(1); id <= 3; id++ {
		if err := s.UpsertManager(ctx, id, fmt.Sprintf("M%d", id), false); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := s.IncrementManagerLoad(ctx, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.SetManagerAvailability(ctx, 2, false); err != nil {
		t.Fatalf("availability: %v", err)
	}

	m, err := s.LeastLoadedAvailable(ctx)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if m.ID != 3 {
		t.Errorf("picked %d, want the unloaded available manager (3)", m.ID)
	}
}

func TestRecentMessagesLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for i := 0; i < 5; i++ {
		msg := &models.Message{ChatID: 100, SenderID: 100, Text: fmt.Sprintf("m%d", i), Type: models.TextMessage}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save: %v", err)
		}
		if msg.ID == 0 {
			t.Fatal("SaveMessage did not assign an id")
		}
	}

	messages, err := s.RecentMessages(ctx, 100, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	if messages[0].Text != "m2" || messages[2].Text != "m4" {
		t.Errorf("window [%s..%s], want [m2..m4]", messages[0].Text, messages[2].Text)
	}
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for id := int64(1); id <= 2; id++ {
		if err := s.UpsertManager(ctx, id, "M", false); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := s.SetManagerAvailability(ctx, 2, false); err != nil {
		t.Fatalf("availability: %v", err)
	}

	if err := s.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateChat(ctx, 101, "bob"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.ClaimChat(ctx, 101, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	stats, err := s.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := models.DashboardStats{TotalManagers: 2, AvailableManagers: 1, PendingChats: 1, ActiveChats: 1}
	if *stats != want {
		t.Errorf("stats=%+v, want %+v", *stats, want)
	}
}

func TestManagerPerformanceRecount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.UpsertManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// One bound active chat, but the advisory counter was bumped twice.
	if err := s.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.ClaimChat(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.IncrementManagerLoad(ctx, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.IncrementManagerLoad(ctx, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}

	if err := s.SaveRating(ctx, &models.Rating{ChatID: 100, Rating: 5}); err != nil {
		t.Fatalf("rating: %v", err)
	}

	report, err := s.ManagerPerformance(ctx, time.Time{})
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("got %d rows, want 1", len(report))
	}
	p := report[0]
	if p.ActiveCounter != 2 || p.BoundChats != 1 {
		t.Errorf("counter=%d bound=%d, drift should be visible as 2 vs 1", p.ActiveCounter, p.BoundChats)
	}
	if p.RatingCount != 1 || p.AvgRating != 5 || p.PositiveRatings != 1 {
		t.Errorf("ratings: count=%d avg=%.1f positive=%d, want 1/5.0/1",
			p.RatingCount, p.AvgRating, p.PositiveRatings)
	}
}

func TestDirectorySeedAndBrowse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	cityID := s.AddCity("Riverton")
	streetID := s.AddStreet(cityID, "Main Street")
	s.AddServicePoint(models.ServicePoint{StreetID: streetID, Name: "Point 1", Address: "Main Street 5"})

	cities, err := s.Cities(ctx)
	if err != nil || len(cities) != 1 {
		t.Fatalf("cities: %v (%d)", err, len(cities))
	}
	streets, err := s.StreetsByCity(ctx, cityID)
	if err != nil || len(streets) != 1 {
		t.Fatalf("streets: %v (%d)", err, len(streets))
	}
	points, err := s.PointsByStreet(ctx, streetID)
	if err != nil || len(points) != 1 {
		t.Fatalf("points: %v (%d)", err, len(points))
	}
	if points[0].Name != "Point 1" {
		t.Errorf("point name=%q", points[0].Name)
	}

	catID := s.AddProductCategory("Coffee")
	s.AddProduct(models.Product{CategoryID: catID, Name: "Espresso", Price: 2.5})
	products, err := s.ProductsByCategory(ctx, catID)
	if err != nil || len(products) != 1 {
		t.Fatalf("products: %v (%d)", err, len(products))
	}
}
