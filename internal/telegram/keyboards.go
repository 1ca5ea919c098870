package telegram

import (
	"github.com/go-telegram/bot/models"

	"prop_support_bot/internal/menu"
)

// keyboardFor builds the reply keyboard for a menu hint, or nil when no
// keyboard change is requested.
func keyboardFor(m menu.Menu) models.ReplyMarkup {
	rows := menu.Rows(m)
	if len(rows) == 0 {
		return nil
	}

	keyboard := make([][]models.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]models.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, models.KeyboardButton{Text: label})
		}
		keyboard = append(keyboard, buttons)
	}

	return &models.ReplyKeyboardMarkup{
		Keyboard:       keyboard,
		ResizeKeyboard: true,
	}
}
