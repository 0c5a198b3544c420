package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button labels. Prefix buttons carry an identifier after the prefix
// and are matched with strings.HasPrefix.
const (
	btnContactManager = "Contact manager"
	btnCloseChat      = "Close chat"
	btnHistory        = "Chat history"
	btnContacts       = "Contacts"
	btnCatalog        = "Catalog"
	btnShareContact   = "Share contact"
	btnMainMenu       = "Main menu"
	btnBackToCities   = "Back to cities"
	btnSkip           = "Skip"

	btnMyStatus    = "My status"
	btnAvailable   = "Available"
	btnUnavailable = "Unavailable"
	btnMyChats     = "My active chats"
	btnTransfer    = "Transfer chat"

	btnAdminPanel  = "Admin panel"
	btnStats       = "Stats"
	btnPending     = "Pending chats"
	btnActive      = "Active chats"
	btnManagers    = "Managers"
	btnExcelReport = "Excel report"

	prefixAccept   = "Accept chat with "
	prefixTransfer = "Transfer to: "
	prefixChatWith = "Chat with "
	prefixRating   = "Rating: "
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnContactManager),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnContacts),
			tgbotapi.NewKeyboardButton(btnCatalog),
		),
	)
}

// clientChatKeyboard is shown while the client has a pending or active
// chat.
func clientChatKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCloseChat),
			tgbotapi.NewKeyboardButton(btnHistory),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(btnShareContact),
		),
	)
}

func ratingKeyboard() tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, 5)
	for i := 1; i <= 5; i++ {
		row = append(row, tgbotapi.NewKeyboardButton(fmt.Sprintf("%s%d", prefixRating, i)))
	}
	return tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMainMenu),
		),
	)
}

func commentKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnMainMenu),
		),
	)
}

func managerKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMyStatus),
			tgbotapi.NewKeyboardButton(btnMyChats),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAvailable),
			tgbotapi.NewKeyboardButton(btnUnavailable),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCloseChat),
			tgbotapi.NewKeyboardButton(btnTransfer),
		),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAdminPanel),
		))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStats),
			tgbotapi.NewKeyboardButton(btnPending),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnActive),
			tgbotapi.NewKeyboardButton(btnManagers),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnExcelReport),
			tgbotapi.NewKeyboardButton(btnMainMenu),
		),
	)
}

// listKeyboard builds one button per label plus the given trailing
// navigation buttons, one per row.
func listKeyboard(labels []string, trailing ...string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(labels)+len(trailing))
	for _, label := range labels {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
	}
	for _, label := range trailing {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// managerMenu resolves the admin flag so admins always see the panel
// entry.
func (b *Bot) managerMenu(ctx context.Context, managerID int64) tgbotapi.ReplyKeyboardMarkup {
	return managerKeyboard(b.svc.IsAdmin(ctx, managerID))
}
