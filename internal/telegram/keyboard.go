package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/YouXam/ucloud-bot/internal/models"
)

// Markup converts a keyboard to Telegram's inline markup. The result always
// carries a non-nil row slice so an empty keyboard clears buttons on edit.
func Markup(kb models.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// KeyboardFrom converts Telegram's inline markup back to a keyboard.
func KeyboardFrom(markup *tgbotapi.InlineKeyboardMarkup) models.Keyboard {
	if markup == nil {
		return nil
	}
	kb := make(models.Keyboard, 0, len(markup.InlineKeyboard))
	for _, row := range markup.InlineKeyboard {
		out := make([]models.Button, 0, len(row))
		for _, b := range row {
			button := models.Button{Text: b.Text}
			if b.URL != nil {
				button.URL = *b.URL
			}
			if b.CallbackData != nil {
				button.CallbackData = *b.CallbackData
			}
			out = append(out, button)
		}
		kb = append(kb, out)
	}
	return kb
}
