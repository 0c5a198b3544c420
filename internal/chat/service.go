package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// Deliverer is the outbound messaging transport: best-effort, text
// only, no retry policy. The bot layer implements it over Telegram.
type Deliverer interface {
	Deliver(recipientID int64, text string) error
}

// Service owns the chat session state machine, the manager assignment
// policy, message relay/history and rating capture. All multi-step
// protocols re-validate state before acting; the store's single
// conditional statement is the only atomicity unit relied upon.
type Service struct {
	store     storage.Storage
	transport Deliverer
	logger    *zap.Logger
}

func NewService(store storage.Storage, transport Deliverer, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		transport: transport,
		logger:    logger,
	}
}

// OpenOrReuse logs a support request for the client. A first-time
// client gets a fresh pending row; a closed chat is flipped back to
// pending keeping previously captured contact fields. Returns true if
// a notification cycle should start, false if the request was a
// repeat on an already pending or active chat.
func (s *Service) OpenOrReuse(ctx context.Context, clientID int64, username string) (bool, error) {
	chat, err := s.store.GetChat(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		if err := s.store.CreateChat(ctx, clientID, username); err != nil {
			s.logger.Error("Failed to create chat",
				zap.Error(err),
				zap.Int64("client_id", clientID))
			return false, fmt.Errorf("open chat %d: %w", clientID, err)
		}
		return true, nil
	}
	if err != nil {
		s.logger.Error("Failed to load chat",
			zap.Error(err),
			zap.Int64("client_id", clientID))
		return false, fmt.Errorf("open chat %d: %w", clientID, err)
	}

	if chat.Status != models.ChatClosed {
		// Repeated request on a pending or active chat is a no-op so
		// managers are not notified twice.
		return false, nil
	}

	reopened, err := s.store.ReopenChat(ctx, clientID, username)
	if err != nil {
		s.logger.Error("Failed to reopen chat",
			zap.Error(err),
			zap.Int64("client_id", clientID))
		return false, fmt.Errorf("reopen chat %d: %w", clientID, err)
	}
	return reopened, nil
}

// Claim binds a manager to a pending chat and activates it. The
// binding is re-read before and after the conditional update so the
// loser of a claim race gets ErrAlreadyTaken instead of silently
// overwriting the winner.
func (s *Service) Claim(ctx context.Context, clientID, managerID int64) (*models.Chat, error) {
	chat, err := s.store.GetChat(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load chat for claim",
			zap.Error(err),
			zap.Int64("client_id", clientID),
			zap.Int64("manager_id", managerID))
		return nil, fmt.Errorf("claim chat %d: %w", clientID, err)
	}

	if chat.IsActive() && chat.ManagerID != 0 {
		if chat.ManagerID == managerID {
			return chat, nil
		}
		return nil, ErrAlreadyTaken
	}

	claimed, err := s.store.ClaimChat(ctx, clientID, managerID)
	if err != nil {
		s.logger.Error("Failed to claim chat",
			zap.Error(err),
			zap.Int64("client_id", clientID),
			zap.Int64("manager_id", managerID))
		return nil, fmt.Errorf("claim chat %d: %w", clientID, err)
	}
	if !claimed {
		// The conditional update matched nothing: either the row is
		// gone or another manager committed first.
		current, err := s.store.GetChat(ctx, clientID)
		if err == nil && current.IsActive() && current.ManagerID != managerID {
			return nil, ErrAlreadyTaken
		}
		return nil, ErrNotFound
	}

	s.incrementLoad(ctx, managerID)

	chat.Status = models.ChatActive
	chat.ManagerID = managerID
	return chat, nil
}

// Close transitions the client's active chat to closed and releases
// the bound manager's load slot. The returned chat still carries the
// manager binding so the caller can notify the right party and
// solicit a rating.
func (s *Service) Close(ctx context.Context, clientID int64) (*models.Chat, error) {
	chat, err := s.store.GetChat(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoActiveChat
	}
	if err != nil {
		s.logger.Error("Failed to load chat for close",
			zap.Error(err),
			zap.Int64("client_id", clientID))
		return nil, fmt.Errorf("close chat %d: %w", clientID, err)
	}
	if !chat.IsActive() {
		return nil, ErrNoActiveChat
	}

	closed, err := s.store.CloseChat(ctx, clientID)
	if err != nil {
		s.logger.Error("Failed to close chat",
			zap.Error(err),
			zap.Int64("client_id", clientID))
		return nil, fmt.Errorf("close chat %d: %w", clientID, err)
	}
	if !closed {
		// Lost a double-close race; the other task already released
		// the manager slot.
		return nil, ErrNoActiveChat
	}

	if chat.ManagerID != 0 {
		s.decrementLoad(ctx, chat.ManagerID)
	}

	chat.Status = models.ChatClosed
	return chat, nil
}

// Transfer rebinds the client's active chat to a new manager. The
// chat-row rebind is the commit point; counter adjustments are
// best-effort derived state and a failure there does not undo the
// transfer. The returned chat carries the previous manager binding.
func (s *Service) Transfer(ctx context.Context, clientID, newManagerID int64) (*models.Chat, error) {
	chat, err := s.store.GetChat(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoActiveChat
	}
	if err != nil {
		s.logger.Error("Failed to load chat for transfer",
			zap.Error(err),
			zap.Int64("client_id", clientID),
			zap.Int64("new_manager_id", newManagerID))
		return nil, fmt.Errorf("transfer chat %d: %w", clientID, err)
	}
	if !chat.IsActive() {
		return nil, ErrNoActiveChat
	}

	transferred, err := s.store.TransferChat(ctx, clientID, newManagerID)
	if err != nil {
		s.logger.Error("Failed to transfer chat",
			zap.Error(err),
			zap.Int64("client_id", clientID),
			zap.Int64("new_manager_id", newManagerID))
		return nil, fmt.Errorf("transfer chat %d: %w", clientID, err)
	}
	if !transferred {
		return nil, ErrNoActiveChat
	}

	if chat.ManagerID != 0 {
		s.decrementLoad(ctx, chat.ManagerID)
	}
	s.incrementLoad(ctx, newManagerID)

	return chat, nil
}

// InActiveChat reports whether the client currently has an active chat.
func (s *Service) InActiveChat(ctx context.Context, clientID int64) (bool, error) {
	active, err := s.store.ClientInActiveChat(ctx, clientID)
	if err != nil {
		s.logger.Error("Failed to check active chat",
			zap.Error(err),
			zap.Int64("client_id", clientID))
		return false, fmt.Errorf("check active chat %d: %w", clientID, err)
	}
	return active, nil
}

// ChatByClient returns the client's chat row regardless of status.
func (s *Service) ChatByClient(ctx context.Context, clientID int64) (*models.Chat, error) {
	chat, err := s.store.GetChat(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load chat",
			zap.Error(err),
			zap.Int64("client_id", clientID))
		return nil, fmt.Errorf("get chat %d: %w", clientID, err)
	}
	return chat, nil
}

// ActiveChatForManager returns one active chat bound to the manager,
// or ErrNoActiveChat. Managers with several chats pick explicitly via
// ActiveChatsForManager.
func (s *Service) ActiveChatForManager(ctx context.Context, managerID int64) (*models.Chat, error) {
	chats, err := s.ActiveChatsForManager(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, ErrNoActiveChat
	}
	return chats[0], nil
}

func (s *Service) ActiveChatsForManager(ctx context.Context, managerID int64) ([]*models.Chat, error) {
	chats, err := s.store.ActiveChatsByManager(ctx, managerID)
	if err != nil {
		s.logger.Error("Failed to list manager chats",
			zap.Error(err),
			zap.Int64("manager_id", managerID))
		return nil, fmt.Errorf("list chats for manager %d: %w", managerID, err)
	}
	return chats, nil
}

func (s *Service) PendingChats(ctx context.Context) ([]*models.Chat, error) {
	chats, err := s.store.PendingChats(ctx)
	if err != nil {
		s.logger.Error("Failed to list pending chats", zap.Error(err))
		return nil, fmt.Errorf("list pending chats: %w", err)
	}
	return chats, nil
}

func (s *Service) ActiveChats(ctx context.Context) ([]*models.Chat, error) {
	chats, err := s.store.ActiveChats(ctx)
	if err != nil {
		s.logger.Error("Failed to list active chats", zap.Error(err))
		return nil, fmt.Errorf("list active chats: %w", err)
	}
	return chats, nil
}

// ClientIDByUsername resolves the claim-button username back to a
// client id.
func (s *Service) ClientIDByUsername(ctx context.Context, username string) (int64, error) {
	clientID, err := s.store.ClientIDByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to resolve username",
			zap.Error(err),
			zap.String("username", username))
		return 0, fmt.Errorf("resolve username %q: %w", username, err)
	}
	return clientID, nil
}

// SaveContact stores progressively shared contact metadata on the
// chat row. Empty fields leave existing values untouched.
func (s *Service) SaveContact(ctx context.Context, clientID int64, name, phone, nickname string) error {
	err := s.store.UpdateChatContact(ctx, clientID, name, phone, nickname)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to save contact",
			zap.Error(err),
			zap.Int64("client_id", clientID))
		return fmt.Errorf("save contact %d: %w", clientID, err)
	}
	return nil
}
