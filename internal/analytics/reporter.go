package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// Reporter derives the admin-facing views: dashboard counts and
// per-manager performance aggregates. It is the one writer of the
// managers.rating aggregate, recomputed from rating rows; the chat
// core itself never touches that field.
type Reporter struct {
	store  storage.Storage
	logger *zap.Logger
}

func NewReporter(store storage.Storage, logger *zap.Logger) *Reporter {
	return &Reporter{store: store, logger: logger}
}

func (r *Reporter) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := r.store.DashboardStats(ctx)
	if err != nil {
		r.logger.Error("Failed to load dashboard stats", zap.Error(err))
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

// Performance aggregates the last `days` days of ratings per manager
// and pushes the recomputed averages back onto the manager rows.
func (r *Reporter) Performance(ctx context.Context, days int) ([]*models.ManagerPerformance, error) {
	since := time.Now().AddDate(0, 0, -days)
	report, err := r.store.ManagerPerformance(ctx, since)
	if err != nil {
		r.logger.Error("Failed to load manager performance",
			zap.Error(err),
			zap.Int("days", days))
		return nil, fmt.Errorf("manager performance: %w", err)
	}

	for _, p := range report {
		if p.RatingCount == 0 {
			continue
		}
		if err := r.store.UpdateManagerRating(ctx, p.ManagerID, p.AvgRating); err != nil {
			r.logger.Warn("Failed to update manager rating aggregate",
				zap.Error(err),
				zap.Int64("manager_id", p.ManagerID))
		}
	}
	return report, nil
}

// FormatDailyReport renders the daily report text sent to the admin.
// Counter drift shows up here as ActiveCounter differing from
// BoundChats.
func FormatDailyReport(stats *models.DashboardStats, report []*models.ManagerPerformance) string {
	var b strings.Builder
	b.WriteString("Daily manager report\n\n")

	if len(report) == 0 {
		b.WriteString("No manager data for today.\n")
	}
	for _, p := range report {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("ID %d", p.ManagerID)
		}
		fmt.Fprintf(&b, "%s (ID %d)\n", name, p.ManagerID)
		fmt.Fprintf(&b, "  chats total: %d\n", p.TotalChats)
		fmt.Fprintf(&b, "  rating: %.1f/5.0 (%d ratings, %d positive, %d negative)\n",
			p.AvgRating, p.RatingCount, p.PositiveRatings, p.NegativeRatings)
		if p.ActiveCounter != p.BoundChats {
			fmt.Fprintf(&b, "  counter drift: active_chats=%d, bound chats=%d\n",
				p.ActiveCounter, p.BoundChats)
		}
		b.WriteString("\n")
	}

	b.WriteString("Overall:\n")
	fmt.Fprintf(&b, "  managers: %d\n", stats.TotalManagers)
	fmt.Fprintf(&b, "  available: %d\n", stats.AvailableManagers)
	fmt.Fprintf(&b, "  pending chats: %d\n", stats.PendingChats)
	fmt.Fprintf(&b, "  active chats: %d\n", stats.ActiveChats)
	return b.String()
}

// HealthIssues checks the stats for the conditions worth waking an
// admin: a queue with nobody to serve it, or a queue that is simply
// too long.
func HealthIssues(stats *models.DashboardStats) []string {
	var issues []string
	if stats.AvailableManagers < 1 && stats.PendingChats > 0 {
		issues = append(issues, fmt.Sprintf(
			"no available managers while %d chats are waiting", stats.PendingChats))
	}
	if stats.PendingChats >= 5 {
		issues = append(issues, fmt.Sprintf(
			"large chat queue: %d pending", stats.PendingChats))
	}
	return issues
}
