package telegram

import "gopkg.in/telebot.v3"

// Client sends text to an operator chat. It keeps alerting code independent of the bot
// library.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
