package storage

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/support-bot/internal/models"
)

// ErrNotFound is returned when an operation targets a row that does not
// exist. Callers translate it into their own taxonomy; it never carries
// driver detail.
var ErrNotFound = errors.New("storage: not found")

type Storage interface {
	ChatStore
	ManagerStore
	MessageStore
	RatingStore
	DirectoryStore
	ReportStore
	Close() error
}

// ChatStore owns the chats table. Status transitions are expressed as
// conditional single-statement updates so the store's native locking is
// the serialization point for races (two managers claiming, double
// close).
type ChatStore interface {
	// CreateChat inserts a fresh pending row for a first-time client.
	CreateChat(ctx context.Context, clientID int64, username string) error
	// ReopenChat flips a closed row back to pending, refreshing the
	// username and unbinding the manager while preserving contact
	// fields. Returns false if the row was not closed.
	ReopenChat(ctx context.Context, clientID int64, username string) (bool, error)
	GetChat(ctx context.Context, clientID int64) (*models.Chat, error)
	// ClaimChat binds a manager to a pending (or active-but-unassigned)
	// row and activates it. Returns false when the conditional update
	// matched no row, i.e. the chat is gone or another claim won.
	ClaimChat(ctx context.Context, clientID, managerID int64) (bool, error)
	// CloseChat transitions an active row to closed. The manager
	// binding is left in place for rating attribution; reopening
	// clears it. Returns false if no active row matched.
	CloseChat(ctx context.Context, clientID int64) (bool, error)
	// TransferChat rebinds an active row to a new manager without
	// changing its status. Returns false if no active row matched.
	TransferChat(ctx context.Context, clientID, newManagerID int64) (bool, error)
	ClientInActiveChat(ctx context.Context, clientID int64) (bool, error)
	ActiveChatsByManager(ctx context.Context, managerID int64) ([]*models.Chat, error)
	PendingChats(ctx context.Context) ([]*models.Chat, error)
	ActiveChats(ctx context.Context) ([]*models.Chat, error)
	ClientIDByUsername(ctx context.Context, username string) (int64, error)
	// UpdateChatContact fills contact metadata progressively; empty
	// arguments leave the stored value untouched.
	UpdateChatContact(ctx context.Context, clientID int64, name, phone, nickname string) error
}

// ManagerStore owns the managers table, including the advisory load
// counters. Counter updates are targeted statements, never
// read-modify-write in application code.
type ManagerStore interface {
	// UpsertManager registers a manager, keeping counters on conflict.
	UpsertManager(ctx context.Context, id int64, name string, isAdmin bool) error
	GetManager(ctx context.Context, id int64) (*models.Manager, error)
	ListManagers(ctx context.Context) ([]*models.Manager, error)
	// LeastLoadedAvailable returns the active, available manager with
	// the fewest active chats, ties broken by oldest last_activity.
	// ErrNotFound when nobody qualifies.
	LeastLoadedAvailable(ctx context.Context) (*models.Manager, error)
	// IncrementManagerLoad bumps active_chats and total_chats and
	// touches last_activity.
	IncrementManagerLoad(ctx context.Context, id int64) error
	// DecrementManagerLoad lowers active_chats, floored at zero.
	DecrementManagerLoad(ctx context.Context, id int64) error
	SetManagerAvailability(ctx context.Context, id int64, available bool) error
	TouchManagerActivity(ctx context.Context, id int64) error
	// UpdateManagerRating stores the externally recomputed rating
	// aggregate; the core never writes it on its own.
	UpdateManagerRating(ctx context.Context, id int64, rating float64) error
	CountAvailableManagers(ctx context.Context) (int, error)
}

// MessageStore owns the append-only message log and the is_read flag.
type MessageStore interface {
	// SaveMessage appends a message and fills msg.ID and msg.Timestamp.
	SaveMessage(ctx context.Context, msg *models.Message) error
	// RecentMessages returns the most recent limit messages of a chat
	// in chronological (ascending) order.
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]*models.Message, error)
	// MarkMessagesRead flips is_read for messages in the chat authored
	// by the other party. Idempotent.
	MarkMessagesRead(ctx context.Context, chatID, readerID int64) error
	UnreadCount(ctx context.Context, chatID, readerID int64) (int, error)
}

// RatingStore owns chat_ratings, one upsertable row per chat.
type RatingStore interface {
	SaveRating(ctx context.Context, r *models.Rating) error
	GetRating(ctx context.Context, chatID int64) (*models.Rating, error)
}

// DirectoryStore serves the static city/street directory and the
// product catalog. Read-only.
type DirectoryStore interface {
	Cities(ctx context.Context) ([]*models.City, error)
	StreetsByCity(ctx context.Context, cityID int64) ([]*models.Street, error)
	PointsByStreet(ctx context.Context, streetID int64) ([]*models.ServicePoint, error)
	ProductCategories(ctx context.Context) ([]*models.ProductCategory, error)
	ProductsByCategory(ctx context.Context, categoryID int64) ([]*models.Product, error)
}

// ReportStore provides the derived read-only views for the admin
// surface. No separate write path.
type ReportStore interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	// ManagerPerformance aggregates ratings received since the given
	// time per manager, alongside a recount of currently bound chats.
	ManagerPerformance(ctx context.Context, since time.Time) ([]*models.ManagerPerformance, error)
}
