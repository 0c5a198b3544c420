package analytics

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

func TestHealthIssues(t *testing.T) {
	tests := []struct {
		name  string
		stats models.DashboardStats
		want  int
	}{
		{"healthy", models.DashboardStats{AvailableManagers: 2, PendingChats: 1}, 0},
		{"nobody serving", models.DashboardStats{AvailableManagers: 0, PendingChats: 1}, 1},
		{"long queue", models.DashboardStats{AvailableManagers: 2, PendingChats: 5}, 1},
		{"both", models.DashboardStats{AvailableManagers: 0, PendingChats: 7}, 2},
		{"idle and empty", models.DashboardStats{AvailableManagers: 0, PendingChats: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthIssues(&tt.stats); len(got) != tt.want {
				t.Errorf("got %d issues (%v), want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestFormatDailyReport(t *testing.T) {
	stats := &models.DashboardStats{TotalManagers: 2, AvailableManagers: 1, PendingChats: 3, ActiveChats: 4}
	report := []*models.ManagerPerformance{
		{ManagerID: 1, Name: "Kate", TotalChats: 10, ActiveCounter: 2, BoundChats: 2, AvgRating: 4.5, RatingCount: 6, PositiveRatings: 5},
		{ManagerID: 2, Name: "Lena", TotalChats: 3, ActiveCounter: 3, BoundChats: 1},
	}

	text := FormatDailyReport(stats, report)
	if !strings.Contains(text, "Kate (ID 1)") {
		t.Errorf("report misses manager header:\n%s", text)
	}
	if strings.Contains(text, "counter drift: active_chats=2") {
		t.Errorf("drift reported for a consistent manager:\n%s", text)
	}
	if !strings.Contains(text, "counter drift: active_chats=3, bound chats=1") {
		t.Errorf("drift not reported for the inconsistent manager:\n%s", text)
	}
	if !strings.Contains(text, "pending chats: 3") {
		t.Errorf("report misses overall stats:\n%s", text)
	}
}

func TestFormatDailyReportEmpty(t *testing.T) {
	text := FormatDailyReport(&models.DashboardStats{}, nil)
	if !strings.Contains(text, "No manager data") {
		t.Errorf("empty report should say so:\n%s", text)
	}
}

func TestPerformanceWritesBackAggregates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	r := NewReporter(store, zap.NewNop())

	if err := store.UpsertManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.ClaimChat(ctx, 100, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.SaveRating(ctx, &models.Rating{ChatID: 100, Rating: 4}); err != nil {
		t.Fatalf("rating: %v", err)
	}

	report, err := r.Performance(ctx, 7)
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if len(report) != 1 || report[0].AvgRating != 4 {
		t.Fatalf("report=%+v, want one row with avg 4", report)
	}

	m, err := store.GetManager(ctx, 1)
	if err != nil {
		t.Fatalf("get manager: %v", err)
	}
	if m.Rating != 4 {
		t.Errorf("manager aggregate=%.1f, want 4.0", m.Rating)
	}
}

func TestExcelReportLayout(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	r := NewReporter(store, zap.NewNop())

	if err := store.UpsertManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	f, err := r.ExcelReport(ctx, 7)
	if err != nil {
		t.Fatalf("excel: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("Managers", "A1")
	if err != nil {
		t.Fatalf("cell: %v", err)
	}
	if header != "ID" {
		t.Errorf("A1=%q, want ID", header)
	}
	name, err := f.GetCellValue("Managers", "B2")
	if err != nil {
		t.Fatalf("cell: %v", err)
	}
	if name != "Kate" {
		t.Errorf("B2=%q, want Kate", name)
	}
	if _, err := f.GetCellValue("Summary", "A1"); err != nil {
		t.Errorf("summary sheet missing: %v", err)
	}
}

// recordingNotifier collects scheduler deliveries.
type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Deliver(recipientID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func TestSchedulerHealthCheckAlerts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	r := NewReporter(store, zap.NewNop())
	notifier := &recordingNotifier{}
	s := NewScheduler(r, notifier, 42, zap.NewNop())

	// Healthy queue: no alert.
	s.runHealthCheck()
	if len(notifier.texts) != 0 {
		t.Fatalf("alert on healthy queue: %v", notifier.texts)
	}

	// A waiting client with nobody available triggers one.
	if err := store.CreateChat(ctx, 100, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.runHealthCheck()
	if len(notifier.texts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(notifier.texts))
	}
	if !strings.Contains(notifier.texts[0], "no available managers") {
		t.Errorf("alert text %q", notifier.texts[0])
	}
}

func TestSchedulerDailyReport(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	r := NewReporter(store, zap.NewNop())
	notifier := &recordingNotifier{}
	s := NewScheduler(r, notifier, 42, zap.NewNop())

	if err := store.UpsertManager(ctx, 1, "Kate", false); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	s.runDailyReport()
	if len(notifier.texts) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(notifier.texts))
	}
	if !strings.Contains(notifier.texts[0], "Daily manager report") {
		t.Errorf("report text %q", notifier.texts[0])
	}
}
