package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Button is one inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is an inline keyboard laid out as rows of buttons.
type Keyboard [][]Button

// DataButton builds a callback button.
func DataButton(text, data string) Button {
	return Button{Text: text, Data: data}
}

// URLButton builds a link button.
func URLButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

// Row is a convenience for building a single keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// NewKeyboard stacks rows into a keyboard.
func NewKeyboard(rows ...[]Button) Keyboard {
	return Keyboard(rows)
}

// Append returns a copy of k with the given rows added.
func (k Keyboard) Append(rows ...[]Button) Keyboard {
	out := make(Keyboard, 0, len(k)+len(rows))
	out = append(out, k...)
	return append(out, rows...)
}

func (k Keyboard) markup() *tgbotapi.InlineKeyboardMarkup {
	if len(k) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k))
	for _, row := range k {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
