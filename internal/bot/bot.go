package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-bot/internal/analytics"
	"github.com/xaenox/support-bot/internal/chat"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/session"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	svc      *chat.Service
	reporter *analytics.Reporter
	store    storage.Storage
	sessions *session.Store
	logger   *zap.Logger
}

func New(token string, store storage.Storage, reporter *analytics.Reporter, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		api:      api,
		reporter: reporter,
		store:    store,
		sessions: session.NewStore(),
		logger:   logger,
	}
	// The bot is the service's delivery transport, so the service is
	// built here rather than injected.
	b.svc = chat.NewService(store, b, logger)
	return b, nil
}

// Service exposes the chat core for startup wiring (manager seeding).
func (b *Bot) Service() *chat.Service {
	return b.svc
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

// Deliver sends a plain text message. It implements the chat core's
// transport and the scheduler's notifier.
func (b *Bot) Deliver(recipientID int64, text string) error {
	msg := tgbotapi.NewMessage(recipientID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("deliver to %d: %w", recipientID, err)
	}
	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()
	userID := message.From.ID

	isManager := b.svc.IsManager(ctx, userID)
	if isManager {
		b.svc.TouchActivity(ctx, userID)
	}

	if message.Contact != nil {
		b.handleSharedContact(ctx, message)
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message, isManager)
		return
	}

	if isManager && b.handleManagerText(ctx, message) {
		return
	}
	if b.handleClientText(ctx, message) {
		return
	}

	b.relayText(ctx, message, isManager)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message, isManager bool) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message, isManager)
	case "help":
		b.handleHelp(message, isManager)
	case "menu":
		b.sessions.Clear(message.From.ID)
		if isManager {
			b.sendWithKeyboard(message.Chat.ID, "Manager menu:", b.managerMenu(ctx, message.From.ID))
		} else {
			b.sendWithKeyboard(message.Chat.ID, "Main menu:", mainMenuKeyboard())
		}
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message, isManager bool) {
	b.sessions.Clear(message.From.ID)

	if isManager {
		b.sendWithKeyboard(message.Chat.ID,
			"Welcome back! Use the menu to manage your chats.",
			b.managerMenu(ctx, message.From.ID))
		return
	}

	welcome := `Welcome to the support bot!

I can connect you with a manager, show our pickup points and the product catalog.
Use /help to see all available commands.`
	b.sendWithKeyboard(message.Chat.ID, welcome, mainMenuKeyboard())
}

func (b *Bot) handleHelp(message *tgbotapi.Message, isManager bool) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/menu - Show the main menu

Use the menu buttons to contact a manager, browse pickup points or the catalog.`

	if isManager {
		help = `Available commands:
/start - Start the bot
/help - Show this help message
/menu - Show the manager menu

Accept chats from request notices, reply to relay messages to the client, and use the menu to manage availability.`
	}

	b.sendMessage(message.Chat.ID, help)
}

// relayText is the default route for free text: inside an active chat
// it is forwarded to the other party, otherwise the user is pointed
// back at the menu.
func (b *Bot) relayText(ctx context.Context, message *tgbotapi.Message, isManager bool) {
	userID := message.From.ID
	text := message.Text
	if text == "" {
		return
	}

	if isManager {
		clientID := b.sessions.Get(userID).FocusClientID
		if clientID == 0 {
			active, err := b.svc.ActiveChatForManager(ctx, userID)
			if err != nil {
				b.sendMessage(message.Chat.ID, "You have no active chat. Accept one first.")
				return
			}
			clientID = active.ClientID
			b.sessions.Focus(userID, clientID)
		}

		if err := b.svc.Relay(ctx, userID, clientID, clientID, text); err != nil {
			if errors.Is(err, chat.ErrDelivery) {
				b.sendMessage(message.Chat.ID, "Message saved, but the client could not be reached.")
				return
			}
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't send your message. Please try again.")
		}
		return
	}

	row, err := b.svc.ChatByClient(ctx, userID)
	if err != nil {
		b.sendWithKeyboard(message.Chat.ID, "Use the menu below:", mainMenuKeyboard())
		return
	}

	switch {
	case row.IsActive() && row.ManagerID != 0:
		if err := b.svc.Relay(ctx, userID, row.ManagerID, userID, text); err != nil {
			if errors.Is(err, chat.ErrDelivery) {
				b.sendMessage(message.Chat.ID, "Message saved, but the manager could not be reached.")
				return
			}
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't send your message. Please try again.")
		}
	case row.Status == models.ChatPending || row.IsActive():
		// Queued messages are kept so the manager sees them on accept.
		if err := b.svc.Record(ctx, userID, userID, text); err != nil {
			b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your message. Please try again.")
			return
		}
		b.sendMessage(message.Chat.ID, "A manager has not joined yet. Your message is saved and will be seen once the chat starts.")
	default:
		b.sendWithKeyboard(message.Chat.ID, "Use the menu below:", mainMenuKeyboard())
	}
}

// parseTrailingID extracts the id from button labels shaped like
// "Chat with john (123)".
func parseTrailingID(text string) (int64, bool) {
	open := strings.LastIndex(text, "(")
	closing := strings.LastIndex(text, ")")
	if open < 0 || closing < open {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(text[open+1:closing]), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
