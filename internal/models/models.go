package models

import "time"

// ChatStatus is the lifecycle state of a client conversation.
type ChatStatus string

const (
	ChatPending ChatStatus = "pending"
	ChatActive  ChatStatus = "active"
	ChatClosed  ChatStatus = "closed"
)

// Chat is a single client's conversation record. One row per client;
// the row is reused across request cycles, never duplicated.
type Chat struct {
	ClientID       int64      `json:"client_id"`
	ManagerID      int64      `json:"manager_id,omitempty"` // 0 while no manager is bound
	Status         ChatStatus `json:"status"`
	Username       string     `json:"username"`
	ClientName     string     `json:"client_name,omitempty"`
	ClientPhone    string     `json:"client_phone,omitempty"`
	ClientNickname string     `json:"client_nickname,omitempty"`
}

func (c *Chat) IsActive() bool {
	return c.Status == ChatActive
}

// DisplayName prefers the shared contact name over the Telegram username.
func (c *Chat) DisplayName() string {
	if c.ClientName != "" {
		return c.ClientName
	}
	return c.Username
}

// Manager is a human operator. ActiveChats/TotalChats are advisory load
// counters maintained by the assignment policy.
type Manager struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	IsAdmin      bool      `json:"is_admin"`
	IsActive     bool      `json:"is_active"`
	IsAvailable  bool      `json:"is_available"`
	ActiveChats  int       `json:"active_chats"`
	TotalChats   int       `json:"total_chats"`
	Rating       float64   `json:"rating"`
	LastActivity time.Time `json:"last_activity"`
}

type MessageType string

const (
	TextMessage     MessageType = "text"
	PhotoMessage    MessageType = "photo"
	DocumentMessage MessageType = "document"
)

// Message is an append-only history entry. ChatID is always the
// client's id, regardless of which side authored the message.
type Message struct {
	ID        int64       `json:"id"`
	ChatID    int64       `json:"chat_id"`
	SenderID  int64       `json:"sender_id"`
	Text      string      `json:"text"`
	Type      MessageType `json:"type"`
	FileID    string      `json:"file_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	IsRead    bool        `json:"is_read"`
}

// Rating is the post-chat satisfaction score, at most one per chat.
type Rating struct {
	ChatID    int64     `json:"chat_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
