package conversation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
)

// Service owns conversation lifecycle and message history access. It
// enforces that a user can only ever touch their own conversations.
type Service struct {
	store  storage.Storage
	logger *zap.Logger
}

func New(store storage.Storage, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// GetOrCreate resolves the conversation for a chat turn. A nil id starts a
// fresh conversation. An id that does not exist also starts a fresh one, so
// clients can blindly resend stale ids after a wipe. An id owned by another
// user is rejected with storage.ErrForbidden.
func (s *Service) GetOrCreate(ctx context.Context, userID int64, conversationID *int64) (*models.Conversation, error) {
	if conversationID != nil {
		conv, err := s.store.GetConversation(ctx, *conversationID)
		if err == nil {
			if conv.UserID != userID {
				return nil, fmt.Errorf("conversation %d: %w", *conversationID, storage.ErrForbidden)
			}
			return conv, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("get conversation %d: %w", *conversationID, err)
		}
		s.logger.Info("Conversation not found, starting a new one",
			zap.Int64("conversation_id", *conversationID),
			zap.Int64("user_id", userID))
	}

	conv, err := s.store.CreateConversation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Append stores one message at the end of the conversation's history.
func (s *Service) Append(ctx context.Context, conversationID, userID int64, role models.MessageRole, content, language string) error {
	msg := &models.Message{
		ConversationID:   conversationID,
		UserID:           userID,
		Role:             role,
		Content:          content,
		DetectedLanguage: language,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns the last count messages in chronological order.
func (s *Service) Recent(ctx context.Context, conversationID int64, count int) ([]*models.Message, error) {
	msgs, err := s.store.RecentMessages(ctx, conversationID, count)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return msgs, nil
}
