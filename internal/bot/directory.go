package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/session"
)

// startDirectory opens the pickup-point browse flow with the city list.
func (b *Bot) startDirectory(ctx context.Context, message *tgbotapi.Message) {
	cities, err := b.store.Cities(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the directory. Please try again.")
		return
	}
	if len(cities) == 0 {
		b.sendMessage(message.Chat.ID, "The directory is empty for now.")
		return
	}

	labels := make([]string, 0, len(cities))
	for _, c := range cities {
		labels = append(labels, c.Name)
	}

	b.sessions.Set(message.From.ID, session.State{Stage: session.StagePickingCity})
	b.sendWithKeyboard(message.Chat.ID, "Pick a city:", listKeyboard(labels, btnMainMenu))
}

func (b *Bot) handleCityPick(ctx context.Context, message *tgbotapi.Message) bool {
	cities, err := b.store.Cities(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the directory. Please try again.")
		return true
	}

	var city *models.City
	for _, c := range cities {
		if strings.EqualFold(c.Name, message.Text) {
			city = c
			break
		}
	}
	if city == nil {
		return false
	}

	streets, err := b.store.StreetsByCity(ctx, city.ID)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the streets. Please try again.")
		return true
	}
	if len(streets) == 0 {
		b.sendMessage(message.Chat.ID, "No pickup points in this city yet.")
		return true
	}

	labels := make([]string, 0, len(streets))
	for _, s := range streets {
		labels = append(labels, s.Name)
	}

	b.sessions.Set(message.From.ID, session.State{
		Stage:  session.StagePickingStreet,
		CityID: city.ID,
	})
	b.sendWithKeyboard(message.Chat.ID,
		fmt.Sprintf("%s. Pick a street:", city.Name),
		listKeyboard(labels, btnBackToCities, btnMainMenu))
	return true
}

func (b *Bot) handleStreetPick(ctx context.Context, message *tgbotapi.Message, state session.State) bool {
	streets, err := b.store.StreetsByCity(ctx, state.CityID)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the streets. Please try again.")
		return true
	}

	var street *models.Street
	for _, s := range streets {
		if strings.EqualFold(s.Name, message.Text) {
			street = s
			break
		}
	}
	if street == nil {
		return false
	}

	points, err := b.store.PointsByStreet(ctx, street.ID)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the pickup points. Please try again.")
		return true
	}
	if len(points) == 0 {
		b.sendMessage(message.Chat.ID, "No pickup points on this street yet.")
		return true
	}

	var sb strings.Builder
	for i, p := range points {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s\n%s\n", p.Name, p.Address)
		if p.WeekdayHours != "" {
			fmt.Fprintf(&sb, "Weekdays: %s\n", p.WeekdayHours)
		}
		if p.WeekendHours != "" {
			fmt.Fprintf(&sb, "Weekends: %s\n", p.WeekendHours)
		}
		if p.Contact != "" {
			fmt.Fprintf(&sb, "Phone: %s\n", p.Contact)
		}
		if p.GeoLink != "" {
			fmt.Fprintf(&sb, "Map: %s\n", p.GeoLink)
		}
	}
	b.sendMessage(message.Chat.ID, sb.String())
	return true
}

// startCatalog opens the product browse flow with the category list.
func (b *Bot) startCatalog(ctx context.Context, message *tgbotapi.Message) {
	categories, err := b.store.ProductCategories(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the catalog. Please try again.")
		return
	}
	if len(categories) == 0 {
		b.sendMessage(message.Chat.ID, "The catalog is empty for now.")
		return
	}

	labels := make([]string, 0, len(categories))
	for _, c := range categories {
		labels = append(labels, c.Name)
	}

	b.sessions.Set(message.From.ID, session.State{Stage: session.StageBrowsingCatalog})
	b.sendWithKeyboard(message.Chat.ID, "Pick a category:", listKeyboard(labels, btnMainMenu))
}

func (b *Bot) handleCategoryPick(ctx context.Context, message *tgbotapi.Message) bool {
	categories, err := b.store.ProductCategories(ctx)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the catalog. Please try again.")
		return true
	}

	var category *models.ProductCategory
	for _, c := range categories {
		if strings.EqualFold(c.Name, message.Text) {
			category = c
			break
		}
	}
	if category == nil {
		return false
	}

	products, err := b.store.ProductsByCategory(ctx, category.ID)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't load the products. Please try again.")
		return true
	}
	if len(products) == 0 {
		b.sendMessage(message.Chat.ID, "This category is empty for now.")
		return true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n\n", category.Name)
	for _, p := range products {
		fmt.Fprintf(&sb, "%s: %.2f\n", p.Name, p.Price)
		if p.Description != "" {
			fmt.Fprintf(&sb, "%s\n", p.Description)
		}
	}
	b.sendMessage(message.Chat.ID, sb.String())
	return true
}
