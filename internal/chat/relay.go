package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xaenox/support-bot/internal/models"
	"go.uber.org/zap"
)

// Relay persists a message in the chat's history and then attempts
// delivery to the recipient. The two steps fail independently: a
// persistence failure aborts the relay, while a delivery failure
// after a successful save surfaces as ErrDelivery without losing the
// stored copy.
func (s *Service) Relay(ctx context.Context, senderID, recipientID, chatID int64, text string) error {
	msg := &models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Text:     text,
		Type:     models.TextMessage,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		s.logger.Error("Failed to persist relayed message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int64("sender_id", senderID))
		return fmt.Errorf("relay message in chat %d: %w", chatID, err)
	}

	if err := s.transport.Deliver(recipientID, text); err != nil {
		s.logger.Error("Failed to deliver relayed message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int64("recipient_id", recipientID),
			zap.Int64("message_id", msg.ID),
			zap.String("delivery_id", uuid.New().String()))
		return fmt.Errorf("%w (message %d)", ErrDelivery, msg.ID)
	}
	return nil
}

// Record appends a message to the history without delivering it. Used
// when the transport has already carried the text out of band, such
// as the claim greeting sent with its own keyboard.
func (s *Service) Record(ctx context.Context, senderID, chatID int64, text string) error {
	msg := &models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Text:     text,
		Type:     models.TextMessage,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		s.logger.Error("Failed to record message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int64("sender_id", senderID))
		return fmt.Errorf("record message in chat %d: %w", chatID, err)
	}
	return nil
}

// History returns up to limit most recent messages of the chat in
// chronological order. A chat with no messages (or no row at all)
// yields an empty history, not an error.
func (s *Service) History(ctx context.Context, chatID int64, limit int) ([]*models.Message, error) {
	messages, err := s.store.RecentMessages(ctx, chatID, limit)
	if err != nil {
		s.logger.Error("Failed to load history",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		return nil, fmt.Errorf("history for chat %d: %w", chatID, err)
	}
	return messages, nil
}

// MarkRead flips the unread flag on the other party's messages.
// Idempotent; the reader's own messages are never touched.
func (s *Service) MarkRead(ctx context.Context, chatID, readerID int64) error {
	if err := s.store.MarkMessagesRead(ctx, chatID, readerID); err != nil {
		s.logger.Error("Failed to mark messages read",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int64("reader_id", readerID))
		return fmt.Errorf("mark read in chat %d: %w", chatID, err)
	}
	return nil
}

// UnreadCount counts the other party's messages not yet read. A
// missing chat yields zero.
func (s *Service) UnreadCount(ctx context.Context, chatID, readerID int64) (int, error) {
	count, err := s.store.UnreadCount(ctx, chatID, readerID)
	if err != nil {
		s.logger.Error("Failed to count unread messages",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int64("reader_id", readerID))
		return 0, fmt.Errorf("unread count for chat %d: %w", chatID, err)
	}
	return count, nil
}
