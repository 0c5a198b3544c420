package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-bot/internal/chat"
	"github.com/xaenox/support-bot/internal/session"
	"go.uber.org/zap"
)

// handleClientText routes the client-side buttons and multi-step
// flows. Returns false when the text is free-form and should fall
// through to the relay.
func (b *Bot) handleClientText(ctx context.Context, message *tgbotapi.Message) bool {
	text := message.Text
	userID := message.From.ID
	state := b.sessions.Get(userID)

	switch text {
	case btnContactManager:
		b.handleSupportRequest(ctx, message)
		return true
	case btnCloseChat:
		b.handleClientClose(ctx, message)
		return true
	case btnHistory:
		b.handleClientHistory(ctx, message)
		return true
	case btnContacts:
		b.startDirectory(ctx, message)
		return true
	case btnCatalog:
		b.startCatalog(ctx, message)
		return true
	case btnMainMenu:
		b.sessions.Clear(userID)
		b.sendWithKeyboard(message.Chat.ID, "Main menu:", mainMenuKeyboard())
		return true
	case btnBackToCities:
		if state.Stage == session.StagePickingCity || state.Stage == session.StagePickingStreet {
			b.startDirectory(ctx, message)
			return true
		}
	case btnSkip:
		if state.Stage == session.StageAwaitingComment {
			b.sessions.Clear(userID)
			b.sendWithKeyboard(message.Chat.ID, "Thank you for your feedback!", mainMenuKeyboard())
			return true
		}
	}

	if strings.HasPrefix(text, prefixRating) {
		b.handleRating(ctx, message)
		return true
	}

	switch state.Stage {
	case session.StagePickingCity:
		return b.handleCityPick(ctx, message)
	case session.StagePickingStreet:
		return b.handleStreetPick(ctx, message, state)
	case session.StageBrowsingCatalog:
		return b.handleCategoryPick(ctx, message)
	case session.StageAwaitingComment:
		b.handleComment(ctx, message)
		return true
	}

	return false
}

func (b *Bot) handleSupportRequest(ctx context.Context, message *tgbotapi.Message) {
	clientID := message.From.ID

	active, err := b.svc.InActiveChat(ctx, clientID)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, something went wrong. Please try again.")
		return
	}
	if active {
		b.sendWithKeyboard(message.Chat.ID,
			"You already have an active chat. Just type your message here.",
			clientChatKeyboard())
		return
	}

	count, err := b.svc.CountAvailable(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, something went wrong. Please try again.")
		return
	}
	if count == 0 {
		b.sendMessage(message.Chat.ID, "No managers are available right now. Please try again later.")
		return
	}

	username := message.From.UserName
	created, err := b.svc.OpenOrReuse(ctx, clientID, username)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't open a chat. Please try again.")
		return
	}
	if !created {
		b.sendWithKeyboard(message.Chat.ID,
			"Your request is already in the queue. A manager will join shortly.",
			clientChatKeyboard())
		return
	}

	b.sendWithKeyboard(message.Chat.ID,
		"Your request has been queued. A manager will join shortly. You can already type your question.",
		clientChatKeyboard())

	b.notifyManagers(ctx, clientID, username)
}

// notifyManagers sends the accept notice to the least-loaded available
// manager, falling back to every registered manager when the policy
// finds nobody.
func (b *Bot) notifyManagers(ctx context.Context, clientID int64, username string) {
	label := username
	if label == "" {
		label = strconv.FormatInt(clientID, 10)
	}
	notice := fmt.Sprintf("New support request from %s", clientLabel(username, clientID))
	keyboard := listKeyboard([]string{prefixAccept + label})

	picked, err := b.svc.PickManager(ctx)
	if err == nil {
		b.sendWithKeyboard(picked.ID, notice, keyboard)
		return
	}
	if !errors.Is(err, chat.ErrNoManagers) {
		b.logger.Error("Failed to pick manager for notice", zap.Error(err))
		return
	}

	managers, err := b.svc.Managers(ctx)
	if err != nil {
		return
	}
	for _, m := range managers {
		if !m.IsActive {
			continue
		}
		b.sendWithKeyboard(m.ID, notice, keyboard)
	}
}

func clientLabel(username string, clientID int64) string {
	if username != "" {
		return "@" + username
	}
	return fmt.Sprintf("client %d", clientID)
}

func (b *Bot) handleClientClose(ctx context.Context, message *tgbotapi.Message) {
	clientID := message.From.ID

	closed, err := b.svc.Close(ctx, clientID)
	if errors.Is(err, chat.ErrNoActiveChat) {
		b.sendWithKeyboard(message.Chat.ID, "You have no active chat.", mainMenuKeyboard())
		return
	}
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't close the chat. Please try again.")
		return
	}

	if closed.ManagerID != 0 {
		b.sendMessage(closed.ManagerID,
			fmt.Sprintf("Client %s closed the chat.", clientLabel(closed.Username, clientID)))
	}

	b.sessions.Clear(clientID)
	b.sendWithKeyboard(message.Chat.ID,
		"Chat closed. Please rate the conversation:", ratingKeyboard())
}

func (b *Bot) handleRating(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	value, err := strconv.Atoi(strings.TrimPrefix(message.Text, prefixRating))
	if err != nil {
		b.sendMessage(message.Chat.ID, "Please pick a rating from 1 to 5.")
		return
	}

	row, err := b.svc.ChatByClient(ctx, userID)
	if err != nil {
		b.sendWithKeyboard(message.Chat.ID, "Nothing to rate yet.", mainMenuKeyboard())
		return
	}

	err = b.svc.SaveRating(ctx, row.ClientID, value, "")
	if errors.Is(err, chat.ErrInvalidRating) {
		b.sendMessage(message.Chat.ID, "Please pick a rating from 1 to 5.")
		return
	}
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your rating. Please try again.")
		return
	}

	b.sessions.SetStage(userID, session.StageAwaitingComment)
	b.sendWithKeyboard(message.Chat.ID,
		"Thank you! You can add a comment, or press Skip.", commentKeyboard())
}

func (b *Bot) handleComment(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	row, err := b.svc.ChatByClient(ctx, userID)
	if err != nil {
		b.sessions.Clear(userID)
		b.sendWithKeyboard(message.Chat.ID, "Nothing to comment on yet.", mainMenuKeyboard())
		return
	}

	err = b.svc.SaveComment(ctx, row.ClientID, message.Text)
	if errors.Is(err, chat.ErrNoRating) {
		b.sessions.Clear(userID)
		b.sendWithKeyboard(message.Chat.ID, "Please rate the chat first.", ratingKeyboard())
		return
	}
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your comment. Please try again.")
		return
	}

	b.sessions.Clear(userID)
	b.sendWithKeyboard(message.Chat.ID, "Thank you for your feedback!", mainMenuKeyboard())
}

func (b *Bot) handleClientHistory(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	if _, err := b.svc.ChatByClient(ctx, userID); err != nil {
		b.sendMessage(message.Chat.ID, "You don't have any chat history yet.")
		return
	}

	messages, err := b.svc.History(ctx, userID, 20)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load your history. Please try again.")
		return
	}
	if len(messages) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any chat history yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Chat history:\n\n")
	for _, m := range messages {
		author := "You"
		if m.SenderID != userID {
			author = "Manager"
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp.Format("02.01 15:04"), author, m.Text)
	}
	b.sendMessage(message.Chat.ID, sb.String())

	if err := b.svc.MarkRead(ctx, userID, userID); err != nil {
		b.logger.Warn("Failed to mark history read",
			zap.Error(err),
			zap.Int64("client_id", userID))
	}
}

func (b *Bot) handleSharedContact(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	contact := message.Contact
	if contact.UserID != 0 && contact.UserID != userID {
		b.sendMessage(message.Chat.ID, "Please share your own contact.")
		return
	}

	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	err := b.svc.SaveContact(ctx, userID, name, contact.PhoneNumber, message.From.UserName)
	if errors.Is(err, chat.ErrNotFound) {
		b.sendMessage(message.Chat.ID, "Start a support chat first, then share your contact.")
		return
	}
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your contact. Please try again.")
		return
	}

	b.sendMessage(message.Chat.ID, "Contact saved. The manager will see your name and phone number.")
}
