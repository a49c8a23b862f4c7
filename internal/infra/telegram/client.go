// internal/infra/telegram/client.go
package telegram

import (
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to a chat. Alert chats are usually groups, so the
// recipient is addressed by chat id rather than as a user.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{DisableWebPagePreview: true}
	}
	_, err := tba.bot.Send(telebot.ChatID(chatID), text, options)
	return err
}

// NewBot creates the bot. With listen unset the bot never polls for updates and is only
// used for outgoing alerts.
func NewBot(token string, listen bool, log *logrus.Entry) (*telebot.Bot, error) {
	pref := telebot.Settings{
		Token: token,
		OnError: func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telebot error")
		},
	}
	if listen {
		pref.Poller = &telebot.LongPoller{Timeout: 10 * time.Second}
	} else {
		pref.Offline = true
	}
	return telebot.NewBot(pref)
}
