// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"document_notifier/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Error: this chat is not allowed to run operator commands."

// StatusSource reports the live state of one monitor.
type StatusSource interface {
	Status() app.MonitorStatus
}

// CommandHandlers serves the operator chat. Only the configured alert chat may use it.
type CommandHandlers struct {
	ctx      context.Context
	admin    *app.AdminService
	monitors []StatusSource
	chatID   int64
	log      *logrus.Entry
}

func NewCommandHandlers(ctx context.Context, admin *app.AdminService, monitors []StatusSource, chatID int64, baseLogger *logrus.Entry) *CommandHandlers {
	return &CommandHandlers{
		ctx:      ctx,
		admin:    admin,
		monitors: monitors,
		chatID:   chatID,
		log:      baseLogger.WithField("handler_group", "operator"),
	}
}

// Register attaches every operator command to b.
func (h *CommandHandlers) Register(b *telebot.Bot) {
	b.Handle("/start", h.help)
	b.Handle("/help", h.help)
	b.Handle("/status", h.status)
	b.Handle("/contacts", h.listContacts)
	b.Handle("/map", h.mapContact)
	b.Handle("/unmap", h.unmapContact)
	b.Handle("/globalcc", h.globalCC)
}

func (h *CommandHandlers) logger(c telebot.Context, command string) *logrus.Entry {
	fields := logrus.Fields{"handler": command}
	if c.Sender() != nil {
		fields["sender_id"] = c.Sender().ID
	}
	if c.Chat() != nil {
		fields["chat_id"] = c.Chat().ID
	}
	return h.log.WithFields(fields)
}

func (h *CommandHandlers) authorized(c telebot.Context, log *logrus.Entry) bool {
	if c.Chat() == nil || c.Chat().ID != h.chatID {
		log.Warn("Unauthorized access attempt")
		return false
	}
	return true
}

func (h *CommandHandlers) help(c telebot.Context) error {
	log := h.logger(c, "/help")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	var helpText strings.Builder
	helpText.WriteString("Operator commands:\n\n")
	helpText.WriteString("`/status`\n - Monitor state, cursor and outcome counts.\n\n")
	helpText.WriteString("`/contacts <kind>`\n - List contact overrides (kind: invoice or po).\n\n")
	helpText.WriteString("`/map <kind> <ID> <to> [cc]`\n - Merge addresses into an override. Separate several addresses with commas, no spaces.\n\n")
	helpText.WriteString("`/unmap <kind> <ID>`\n - Delete an override.\n\n")
	helpText.WriteString("`/globalcc <kind> [addresses]`\n - Show or replace the global CC list. Use `-` to clear it.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *CommandHandlers) status(c telebot.Context) error {
	log := h.logger(c, "/status")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}
	if len(h.monitors) == 0 {
		return c.Send("No monitors are running.")
	}

	var b strings.Builder
	for i, m := range h.monitors {
		st := m.Status()
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s\ncursor %s\n%s",
			st.Monitor, st.State, st.Cursor.Format("2006-01-02 15:04:05"), st.Stats)
	}
	return c.Send(b.String())
}
