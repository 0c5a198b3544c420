package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// PickManager selects the least-loaded available manager, ties broken
// by longest idle time. ErrNoManagers means nobody qualifies right
// now; the caller falls back to broadcasting the pending notice to
// every registered manager. There is no reservation between pick and
// claim: the claim statement is the true serialization point.
func (s *Service) PickManager(ctx context.Context) (*models.Manager, error) {
	m, err := s.store.LeastLoadedAvailable(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoManagers
	}
	if err != nil {
		s.logger.Error("Failed to pick manager", zap.Error(err))
		return nil, fmt.Errorf("pick manager: %w", err)
	}
	return m, nil
}

// CountAvailable is the coarse admission gate: a support request is
// refused up front when it returns zero, independent of what
// PickManager would later find.
func (s *Service) CountAvailable(ctx context.Context) (int, error) {
	count, err := s.store.CountAvailableManagers(ctx)
	if err != nil {
		s.logger.Error("Failed to count available managers", zap.Error(err))
		return 0, fmt.Errorf("count available managers: %w", err)
	}
	return count, nil
}

// SetAvailability toggles whether the manager receives new pending
// notices. Unknown ids are logged and ignored.
func (s *Service) SetAvailability(ctx context.Context, managerID int64, available bool) error {
	err := s.store.SetManagerAvailability(ctx, managerID, available)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Availability change for unknown manager",
			zap.Int64("manager_id", managerID))
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to set availability",
			zap.Error(err),
			zap.Int64("manager_id", managerID),
			zap.Bool("available", available))
		return fmt.Errorf("set availability for manager %d: %w", managerID, err)
	}
	return nil
}

// TouchActivity refreshes the manager's last_activity. Unknown ids
// are logged and ignored.
func (s *Service) TouchActivity(ctx context.Context, managerID int64) error {
	err := s.store.TouchManagerActivity(ctx, managerID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Activity touch for unknown manager",
			zap.Int64("manager_id", managerID))
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to touch activity",
			zap.Error(err),
			zap.Int64("manager_id", managerID))
		return fmt.Errorf("touch activity for manager %d: %w", managerID, err)
	}
	return nil
}

// RegisterManager enrolls (or re-enables) a manager. Called at
// startup for every configured id.
func (s *Service) RegisterManager(ctx context.Context, id int64, name string, isAdmin bool) error {
	if err := s.store.UpsertManager(ctx, id, name, isAdmin); err != nil {
		s.logger.Error("Failed to register manager",
			zap.Error(err),
			zap.Int64("manager_id", id))
		return fmt.Errorf("register manager %d: %w", id, err)
	}
	return nil
}

func (s *Service) Manager(ctx context.Context, id int64) (*models.Manager, error) {
	m, err := s.store.GetManager(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load manager",
			zap.Error(err),
			zap.Int64("manager_id", id))
		return nil, fmt.Errorf("get manager %d: %w", id, err)
	}
	return m, nil
}

// IsManager reports whether the id belongs to a registered manager.
func (s *Service) IsManager(ctx context.Context, id int64) bool {
	_, err := s.Manager(ctx, id)
	return err == nil
}

// IsAdmin reports whether the id belongs to an admin manager.
func (s *Service) IsAdmin(ctx context.Context, id int64) bool {
	m, err := s.Manager(ctx, id)
	return err == nil && m.IsAdmin
}

func (s *Service) Managers(ctx context.Context) ([]*models.Manager, error) {
	managers, err := s.store.ListManagers(ctx)
	if err != nil {
		s.logger.Error("Failed to list managers", zap.Error(err))
		return nil, fmt.Errorf("list managers: %w", err)
	}
	return managers, nil
}

// incrementLoad and decrementLoad keep the advisory counters in step
// with claim/transfer/close events. Failures are logged, never
// propagated: the chat binding is the source of truth and counters
// are reconciled through the reporting recount.

func (s *Service) incrementLoad(ctx context.Context, managerID int64) {
	if err := s.store.IncrementManagerLoad(ctx, managerID); err != nil {
		s.logger.Error("Failed to increment manager load",
			zap.Error(err),
			zap.Int64("manager_id", managerID))
	}
}

func (s *Service) decrementLoad(ctx context.Context, managerID int64) {
	if err := s.store.DecrementManagerLoad(ctx, managerID); err != nil {
		s.logger.Error("Failed to decrement manager load",
			zap.Error(err),
			zap.Int64("manager_id", managerID))
	}
}
