package model

import "time"

// DefaultChatTitle is the title of a chat that has no messages yet.
const DefaultChatTitle = "New Chat"

// Message roles.
const (
	MessageRoleUser = "user"
	MessageRoleAI   = "ai"
)

// Chat is a conversation owned by a single user.
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Messages  []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

func (Chat) TableName() string {
	return "chats"
}

// Message is one turn in a chat. Messages are append-only and ordered by ID.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ChatID         uint      `gorm:"index;not null" json:"-"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Image          string    `gorm:"type:longtext" json:"image,omitempty"`
	FileAttachment string    `gorm:"type:varchar(255)" json:"fileAttachment,omitempty"`
	AttachmentKey  string    `gorm:"type:varchar(512)" json:"attachmentKey,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (Message) TableName() string {
	return "chat_messages"
}

// ChatSummary is the projection returned by the chat history listing.
type ChatSummary struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}
