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

// handleManagerText routes the manager-side buttons. Returns false for
// free text, which then relays into the focused chat.
func (b *Bot) handleManagerText(ctx context.Context, message *tgbotapi.Message) bool {
	text := message.Text
	managerID := message.From.ID

	switch text {
	case btnMyStatus:
		b.handleManagerStatus(ctx, message)
		return true
	case btnAvailable:
		b.handleAvailability(ctx, message, true)
		return true
	case btnUnavailable:
		b.handleAvailability(ctx, message, false)
		return true
	case btnMyChats:
		b.handleMyChats(ctx, message)
		return true
	case btnTransfer:
		b.startTransfer(ctx, message)
		return true
	case btnCloseChat:
		b.handleManagerClose(ctx, message)
		return true
	case btnMainMenu:
		b.sessions.Clear(managerID)
		b.sendWithKeyboard(message.Chat.ID, "Manager menu:", b.managerMenu(ctx, managerID))
		return true
	}

	if b.svc.IsAdmin(ctx, managerID) {
		switch text {
		case btnAdminPanel:
			b.sendWithKeyboard(message.Chat.ID, "Admin panel:", adminKeyboard())
			return true
		case btnStats:
			b.handleStats(ctx, message)
			return true
		case btnPending:
			b.handlePendingChats(ctx, message)
			return true
		case btnActive:
			b.handleActiveChats(ctx, message)
			return true
		case btnManagers:
			b.handleManagerList(ctx, message)
			return true
		case btnExcelReport:
			b.handleExcelReport(ctx, message)
			return true
		}
	}

	switch {
	case strings.HasPrefix(text, prefixAccept):
		b.handleAccept(ctx, message)
		return true
	case strings.HasPrefix(text, prefixTransfer):
		b.handleTransferTarget(ctx, message)
		return true
	case strings.HasPrefix(text, prefixChatWith):
		b.handleFocusChat(ctx, message)
		return true
	}

	return false
}

// handleAccept claims the chat named in the accept button. The button
// carries the client's username, or the bare id for clients without
// one.
func (b *Bot) handleAccept(ctx context.Context, message *tgbotapi.Message) {
	managerID := message.From.ID

	target := strings.TrimPrefix(message.Text, prefixAccept)
	if i := strings.Index(target, " ("); i >= 0 {
		target = target[:i]
	}

	clientID, err := b.svc.ClientIDByUsername(ctx, target)
	if err != nil {
		id, perr := strconv.ParseInt(target, 10, 64)
		if perr != nil {
			b.sendMessage(message.Chat.ID, "Chat not found. It may have been closed.")
			return
		}
		clientID = id
	}

	claimed, err := b.svc.Claim(ctx, clientID, managerID)
	switch {
	case errors.Is(err, chat.ErrAlreadyTaken):
		b.sendMessage(message.Chat.ID, "This chat is already taken by another manager.")
		return
	case errors.Is(err, chat.ErrNotFound):
		b.sendMessage(message.Chat.ID, "Chat not found. It may have been closed.")
		return
	case err != nil:
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't accept the chat. Please try again.")
		return
	}

	b.sessions.Focus(managerID, clientID)

	managerName := "A manager"
	if m, err := b.svc.Manager(ctx, managerID); err == nil && m.Name != "" {
		managerName = "Manager " + m.Name
	}
	greeting := fmt.Sprintf("%s has joined the chat. How can we help you?", managerName)
	if err := b.Deliver(clientID, greeting); err != nil {
		b.logger.Warn("Failed to greet client",
			zap.Error(err),
			zap.Int64("client_id", clientID))
	}
	if err := b.svc.Record(ctx, managerID, clientID, greeting); err != nil {
		b.logger.Warn("Failed to record greeting",
			zap.Error(err),
			zap.Int64("client_id", clientID))
	}

	b.sendWithKeyboard(message.Chat.ID,
		fmt.Sprintf("You are now chatting with %s. Type your reply here.",
			clientLabel(claimed.Username, clientID)),
		b.managerMenu(ctx, managerID))

	b.sendPendingHistory(ctx, message.Chat.ID, clientID, managerID)
}

// sendPendingHistory shows the manager what the client wrote while
// waiting in the queue, then marks it read.
func (b *Bot) sendPendingHistory(ctx context.Context, chatID, clientID, managerID int64) {
	unread, err := b.svc.UnreadCount(ctx, clientID, managerID)
	if err != nil || unread == 0 {
		return
	}

	messages, err := b.svc.History(ctx, clientID, 20)
	if err != nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Messages from the client while waiting (%d unread):\n\n", unread)
	for _, m := range messages {
		if m.SenderID != clientID || m.IsRead {
			continue
		}
		fmt.Fprintf(&sb, "[%s] %s\n", m.Timestamp.Format("02.01 15:04"), m.Text)
	}
	b.sendMessage(chatID, sb.String())

	if err := b.svc.MarkRead(ctx, clientID, managerID); err != nil {
		b.logger.Warn("Failed to mark queue messages read",
			zap.Error(err),
			zap.Int64("client_id", clientID))
	}
}

func (b *Bot) handleManagerStatus(ctx context.Context, message *tgbotapi.Message) {
	m, err := b.svc.Manager(ctx, message.From.ID)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load your status. Please try again.")
		return
	}

	availability := "unavailable"
	if m.IsAvailable {
		availability = "available"
	}
	status := fmt.Sprintf(
		"Your status: %s\nActive chats: %d\nTotal chats: %d\nRating: %.1f/5.0",
		availability, m.ActiveChats, m.TotalChats, m.Rating)
	b.sendMessage(message.Chat.ID, status)
}

func (b *Bot) handleAvailability(ctx context.Context, message *tgbotapi.Message, available bool) {
	if err := b.svc.SetAvailability(ctx, message.From.ID, available); err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't update your status. Please try again.")
		return
	}

	if available {
		b.sendMessage(message.Chat.ID, "You are now available and will receive new chat requests.")
	} else {
		b.sendMessage(message.Chat.ID, "You are now unavailable. New requests will go to other managers.")
	}
}

func (b *Bot) handleMyChats(ctx context.Context, message *tgbotapi.Message) {
	managerID := message.From.ID

	chats, err := b.svc.ActiveChatsForManager(ctx, managerID)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load your chats. Please try again.")
		return
	}
	if len(chats) == 0 {
		b.sendMessage(message.Chat.ID, "You have no active chats.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your active chats:\n\n")
	labels := make([]string, 0, len(chats))
	for _, c := range chats {
		unread, _ := b.svc.UnreadCount(ctx, c.ClientID, managerID)
		fmt.Fprintf(&sb, "%s, %d unread\n", clientLabel(c.Username, c.ClientID), unread)
		labels = append(labels,
			fmt.Sprintf("%s%s (%d)", prefixChatWith, c.DisplayName(), c.ClientID))
	}
	sb.WriteString("\nPick a chat to reply to:")

	b.sendWithKeyboard(message.Chat.ID, sb.String(), listKeyboard(labels, btnMainMenu))
}

func (b *Bot) handleFocusChat(ctx context.Context, message *tgbotapi.Message) {
	managerID := message.From.ID

	clientID, ok := parseTrailingID(message.Text)
	if !ok {
		b.sendMessage(message.Chat.ID, "Chat not found. Use My active chats to pick one.")
		return
	}

	row, err := b.svc.ChatByClient(ctx, clientID)
	if err != nil || !row.IsActive() || row.ManagerID != managerID {
		b.sendMessage(message.Chat.ID, "Chat not found. Use My active chats to pick one.")
		return
	}

	b.sessions.Focus(managerID, clientID)
	b.sendWithKeyboard(message.Chat.ID,
		fmt.Sprintf("You are now replying to %s.", clientLabel(row.Username, clientID)),
		b.managerMenu(ctx, managerID))
}

func (b *Bot) handleManagerClose(ctx context.Context, message *tgbotapi.Message) {
	managerID := message.From.ID

	clientID, ok := b.focusedClient(ctx, managerID)
	if !ok {
		b.sendMessage(message.Chat.ID, "You have no active chat to close.")
		return
	}

	closed, err := b.svc.Close(ctx, clientID)
	if errors.Is(err, chat.ErrNoActiveChat) {
		b.sendMessage(message.Chat.ID, "You have no active chat to close.")
		return
	}
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't close the chat. Please try again.")
		return
	}

	b.sessions.Clear(managerID)
	b.sendWithKeyboard(message.Chat.ID,
		fmt.Sprintf("Chat with %s closed.", clientLabel(closed.Username, clientID)),
		b.managerMenu(ctx, managerID))

	msg := tgbotapi.NewMessage(clientID, "The manager has closed the chat. Please rate the conversation:")
	msg.ReplyMarkup = ratingKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send rating prompt",
			zap.Error(err),
			zap.Int64("client_id", clientID))
	}
}

// startTransfer lists possible transfer targets for the focused chat.
func (b *Bot) startTransfer(ctx context.Context, message *tgbotapi.Message) {
	managerID := message.From.ID

	if _, ok := b.focusedClient(ctx, managerID); !ok {
		b.sendMessage(message.Chat.ID, "You have no active chat to transfer.")
		return
	}

	managers, err := b.svc.Managers(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the manager list. Please try again.")
		return
	}

	labels := make([]string, 0, len(managers))
	for _, m := range managers {
		if m.ID == managerID || !m.IsActive {
			continue
		}
		labels = append(labels, fmt.Sprintf("%s%s (%d)", prefixTransfer, m.Name, m.ID))
	}
	if len(labels) == 0 {
		b.sendMessage(message.Chat.ID, "There is no other manager to transfer to.")
		return
	}

	b.sessions.SetStage(managerID, session.StageTransferring)
	b.sendWithKeyboard(message.Chat.ID, "Pick a manager to transfer the chat to:",
		listKeyboard(labels, btnMainMenu))
}

func (b *Bot) handleTransferTarget(ctx context.Context, message *tgbotapi.Message) {
	managerID := message.From.ID

	state := b.sessions.Get(managerID)
	if state.Stage != session.StageTransferring {
		b.sendMessage(message.Chat.ID, "Start the transfer from the Transfer chat button.")
		return
	}

	newManagerID, ok := parseTrailingID(message.Text)
	if !ok {
		b.sendMessage(message.Chat.ID, "Manager not found. Pick one from the list.")
		return
	}
	if !b.svc.IsManager(ctx, newManagerID) {
		b.sendMessage(message.Chat.ID, "Manager not found. Pick one from the list.")
		return
	}

	clientID, ok := b.focusedClient(ctx, managerID)
	if !ok {
		b.sessions.Clear(managerID)
		b.sendMessage(message.Chat.ID, "You have no active chat to transfer.")
		return
	}

	row, err := b.svc.Transfer(ctx, clientID, newManagerID)
	if errors.Is(err, chat.ErrNoActiveChat) {
		b.sessions.Clear(managerID)
		b.sendMessage(message.Chat.ID, "The chat is no longer active.")
		return
	}
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't transfer the chat. Please try again.")
		return
	}

	b.sessions.Clear(managerID)
	b.sendWithKeyboard(message.Chat.ID,
		fmt.Sprintf("Chat with %s transferred.", clientLabel(row.Username, clientID)),
		b.managerMenu(ctx, managerID))

	b.sessions.Focus(newManagerID, clientID)
	b.sendWithKeyboard(newManagerID,
		fmt.Sprintf("Chat with %s was transferred to you. Type your reply here.",
			clientLabel(row.Username, clientID)),
		b.managerMenu(ctx, newManagerID))
	b.sendMessage(clientID, "Your chat was transferred to another manager.")
}

// focusedClient resolves which client the manager is currently working
// with: the explicit focus if set, otherwise the single active chat.
func (b *Bot) focusedClient(ctx context.Context, managerID int64) (int64, bool) {
	if clientID := b.sessions.Get(managerID).FocusClientID; clientID != 0 {
		row, err := b.svc.ChatByClient(ctx, clientID)
		if err == nil && row.IsActive() && row.ManagerID == managerID {
			return clientID, true
		}
	}

	active, err := b.svc.ActiveChatForManager(ctx, managerID)
	if err != nil {
		return 0, false
	}
	b.sessions.Focus(managerID, active.ClientID)
	return active.ClientID, true
}
