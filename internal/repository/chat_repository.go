package repository

import (
	"context"
	"errors"
	"time"

	"doubtiq-go/internal/model"

	"gorm.io/gorm"
)

// ErrChatNotFound covers both missing chats and chats owned by someone else.
var ErrChatNotFound = errors.New("chat not found")

// ChatRepository persists chats and their messages. Every lookup is scoped
// to the owning user.
type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	FindForUser(ctx context.Context, chatID, userID uint) (*model.Chat, error)
	ListSummaries(ctx context.Context, userID uint) ([]model.ChatSummary, error)
	// AppendMessages inserts msgs and saves chat.Title in one transaction,
	// then appends msgs to chat.Messages.
	AppendMessages(ctx context.Context, chat *model.Chat, msgs ...*model.Message) error
	UpdateTitle(ctx context.Context, chatID, userID uint, title string) error
	Delete(ctx context.Context, chatID, userID uint) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a gorm-backed ChatRepository.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, chat *model.Chat) error {
	if chat.Messages == nil {
		chat.Messages = []model.Message{}
	}
	return r.db.WithContext(ctx).Omit("Messages").Create(chat).Error
}

func (r *chatRepository) FindForUser(ctx context.Context, chatID, userID uint) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ? AND user_id = ?", chatID, userID).
		First(&chat).Error
	if err != nil {
		return nil, notFound(err, ErrChatNotFound)
	}
	if chat.Messages == nil {
		chat.Messages = []model.Message{}
	}
	return &chat, nil
}

func (r *chatRepository) ListSummaries(ctx context.Context, userID uint) ([]model.ChatSummary, error) {
	summaries := []model.ChatSummary{}
	err := r.db.WithContext(ctx).Model(&model.Chat{}).
		Select("id", "title", "updated_at").
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Scan(&summaries).Error
	return summaries, err
}

func (r *chatRepository) AppendMessages(ctx context.Context, chat *model.Chat, msgs ...*model.Message) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Chat{}).Where("id = ?", chat.ID).
			Updates(map[string]interface{}{"title": chat.Title, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChatNotFound
		}
		for _, m := range msgs {
			m.ChatID = chat.ID
			if m.Timestamp.IsZero() {
				m.Timestamp = now
			}
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	chat.UpdatedAt = now
	for _, m := range msgs {
		chat.Messages = append(chat.Messages, *m)
	}
	return nil
}

func (r *chatRepository) UpdateTitle(ctx context.Context, chatID, userID uint, title string) error {
	res := r.db.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ? AND user_id = ?", chatID, userID).
		Updates(map[string]interface{}{"title": title, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Delete removes the chat and its messages.
func (r *chatRepository) Delete(ctx context.Context, chatID, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", chatID, userID).Delete(&model.Chat{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChatNotFound
		}
		return tx.Where("chat_id = ?", chatID).Delete(&model.Message{}).Error
	})
}
