package bot

import (
	"context"
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	stats, err := b.reporter.Dashboard(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the stats. Please try again.")
		return
	}

	text := fmt.Sprintf(
		"Current stats:\nManagers: %d\nAvailable: %d\nPending chats: %d\nActive chats: %d",
		stats.TotalManagers, stats.AvailableManagers, stats.PendingChats, stats.ActiveChats)
	b.sendMessage(message.Chat.ID, text)
}

// handlePendingChats lists the queue with accept buttons so an admin
// can claim any waiting chat directly.
func (b *Bot) handlePendingChats(ctx context.Context, message *tgbotapi.Message) {
	chats, err := b.svc.PendingChats(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the queue. Please try again.")
		return
	}
	if len(chats) == 0 {
		b.sendMessage(message.Chat.ID, "The queue is empty.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Pending chats (%d):\n\n", len(chats))
	labels := make([]string, 0, len(chats))
	for _, c := range chats {
		fmt.Fprintf(&sb, "%s\n", clientLabel(c.Username, c.ClientID))
		label := c.Username
		if label == "" {
			label = fmt.Sprintf("%d", c.ClientID)
		}
		labels = append(labels, prefixAccept+label)
	}

	b.sendWithKeyboard(message.Chat.ID, sb.String(), listKeyboard(labels, btnMainMenu))
}

func (b *Bot) handleActiveChats(ctx context.Context, message *tgbotapi.Message) {
	chats, err := b.svc.ActiveChats(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load active chats. Please try again.")
		return
	}
	if len(chats) == 0 {
		b.sendMessage(message.Chat.ID, "There are no active chats.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Active chats (%d):\n\n", len(chats))
	for _, c := range chats {
		manager := "no manager"
		if c.ManagerID != 0 {
			manager = fmt.Sprintf("manager %d", c.ManagerID)
			if m, err := b.svc.Manager(ctx, c.ManagerID); err == nil && m.Name != "" {
				manager = m.Name
			}
		}
		fmt.Fprintf(&sb, "%s with %s\n", clientLabel(c.Username, c.ClientID), manager)
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) handleManagerList(ctx context.Context, message *tgbotapi.Message) {
	managers, err := b.svc.Managers(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the manager list. Please try again.")
		return
	}
	if len(managers) == 0 {
		b.sendMessage(message.Chat.ID, "No managers are registered.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Managers:\n\n")
	for _, m := range managers {
		availability := "unavailable"
		if m.IsAvailable {
			availability = "available"
		}
		role := ""
		if m.IsAdmin {
			role = ", admin"
		}
		fmt.Fprintf(&sb, "%s (%d): %s%s, %d active, %d total, rating %.1f\n",
			m.Name, m.ID, availability, role, m.ActiveChats, m.TotalChats, m.Rating)
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

// handleExcelReport builds the 30-day workbook, sends it as a document
// and removes the temp file.
func (b *Bot) handleExcelReport(ctx context.Context, message *tgbotapi.Message) {
	path, err := b.reporter.SaveExcelReport(ctx, 30)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't build the report. Please try again.")
		return
	}
	defer os.Remove(path)

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FilePath(path))
	doc.Caption = "Manager report, last 30 days"
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("Failed to send excel report",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't send the report. Please try again.")
	}
}
