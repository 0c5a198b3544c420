package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Notifier carries scheduler output to the admin. The bot satisfies
// it; tests use a recording fake.
type Notifier interface {
	Deliver(recipientID int64, text string) error
}

// Scheduler runs the recurring background jobs: the daily manager
// report and a periodic queue health check.
type Scheduler struct {
	reporter *Reporter
	notifier Notifier
	adminID  int64
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewScheduler(reporter *Reporter, notifier Notifier, adminID int64, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reporter: reporter,
		notifier: notifier,
		adminID:  adminID,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the jobs and launches the cron loop. reportSpec is a
// standard cron expression, typically "0 9 * * *".
func (s *Scheduler) Start(reportSpec string) error {
	if _, err := s.cron.AddFunc(reportSpec, s.runDailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}
	if _, err := s.cron.AddFunc("@every 15m", s.runHealthCheck); err != nil {
		return fmt.Errorf("schedule health check: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("report_spec", reportSpec))
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDailyReport() {
	ctx := context.Background()

	report, err := s.reporter.Performance(ctx, 1)
	if err != nil {
		s.logger.Error("Daily report failed", zap.Error(err))
		return
	}
	stats, err := s.reporter.Dashboard(ctx)
	if err != nil {
		s.logger.Error("Daily report failed", zap.Error(err))
		return
	}

	if err := s.notifier.Deliver(s.adminID, FormatDailyReport(stats, report)); err != nil {
		s.logger.Error("Failed to deliver daily report",
			zap.Error(err),
			zap.Int64("admin_id", s.adminID))
	}
}

func (s *Scheduler) runHealthCheck() {
	ctx := context.Background()

	stats, err := s.reporter.Dashboard(ctx)
	if err != nil {
		s.logger.Error("Health check failed", zap.Error(err))
		return
	}

	issues := HealthIssues(stats)
	if len(issues) == 0 {
		return
	}

	text := "Support queue alert:\n- " + strings.Join(issues, "\n- ")
	if err := s.notifier.Deliver(s.adminID, text); err != nil {
		s.logger.Error("Failed to deliver health alert",
			zap.Error(err),
			zap.Int64("admin_id", s.adminID))
	}
}
