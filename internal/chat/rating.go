package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

// SaveRating stores the post-chat satisfaction score, replacing any
// prior rating for the chat. The data layer does not care whether the
// chat is closed; the bot only solicits ratings after a close.
func (s *Service) SaveRating(ctx context.Context, chatID int64, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	r := &models.Rating{
		ChatID:  chatID,
		Rating:  rating,
		Comment: comment,
	}
	if err := s.store.SaveRating(ctx, r); err != nil {
		s.logger.Error("Failed to save rating",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("rating", rating))
		return fmt.Errorf("save rating for chat %d: %w", chatID, err)
	}
	return nil
}

// SaveComment attaches a comment to an existing rating by re-writing
// the stored score alongside the new text. A comment without a prior
// numeric rating is rejected.
func (s *Service) SaveComment(ctx context.Context, chatID int64, comment string) error {
	existing, err := s.store.GetRating(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoRating
	}
	if err != nil {
		s.logger.Error("Failed to load rating for comment",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		return fmt.Errorf("load rating for chat %d: %w", chatID, err)
	}

	return s.SaveRating(ctx, chatID, existing.Rating, comment)
}

// Rating returns the chat's rating, or ErrNotFound if none was saved.
func (s *Service) Rating(ctx context.Context, chatID int64) (*models.Rating, error) {
	r, err := s.store.GetRating(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load rating",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		return nil, fmt.Errorf("get rating for chat %d: %w", chatID, err)
	}
	return r, nil
}
