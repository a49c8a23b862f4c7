package telegram

import (
	"errors"
	"fmt"
	"strings"

	"document_notifier/internal/app"
	"document_notifier/internal/domain/document"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func parseKindArg(arg string) (document.Kind, bool) {
	return document.ParseKind(strings.ToLower(arg))
}

func (h *CommandHandlers) listContacts(c telebot.Context) error {
	log := h.logger(c, "/contacts")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Invalid command format. Use: /contacts <invoice|po>")
	}
	kind, ok := parseKindArg(args[0])
	if !ok {
		return c.Send(fmt.Sprintf("Unknown kind %q. Use invoice or po.", args[0]))
	}

	mappings, err := h.admin.ListMappings(h.ctx, kind)
	if err != nil {
		log.WithError(err).Error("Failed to list contact mappings")
		return c.Send(fmt.Sprintf("Failed to list overrides: %s", err.Error()))
	}
	if len(mappings) == 0 {
		return c.Send(fmt.Sprintf("No %s overrides.", kind.Title()))
	}
	log.WithField("mappings_count", len(mappings)).Info("Listed contact mappings")

	var response strings.Builder
	fmt.Fprintf(&response, "%s overrides:\n", kind.Title())
	for _, m := range mappings {
		fmt.Fprintf(&response, "\n%s\n  to: %s", m.EntityID, orDash(m.To))
		if m.CC != "" {
			fmt.Fprintf(&response, "\n  cc: %s", m.CC)
		}
		if m.Suppressed {
			response.WriteString("\n  (suppressed)")
		}
	}
	return c.Send(response.String())
}

func (h *CommandHandlers) mapContact(c telebot.Context) error {
	log := h.logger(c, "/map")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	args := c.Args()
	// Expected format: /map <kind> <ID> <to> [cc]
	if len(args) < 3 || len(args) > 4 {
		log.WithField("args_count", len(args)).Warn("Invalid command format")
		return c.Send("Invalid command format. Use: /map <invoice|po> <ID> <to> [cc]")
	}
	kind, ok := parseKindArg(args[0])
	if !ok {
		return c.Send(fmt.Sprintf("Unknown kind %q. Use invoice or po.", args[0]))
	}
	var cc string
	if len(args) == 4 {
		cc = args[3]
	}
	log = log.WithFields(logrus.Fields{"kind": kind, "entity_id": args[1]})

	view, err := h.admin.SaveMapping(h.ctx, kind, args[1], args[2], cc)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEntityIDRequired), errors.Is(err, app.ErrRecipientRequired):
			log.WithError(err).Warn("Rejected contact mapping")
			return c.Send(fmt.Sprintf("Error: %s.", err.Error()))
		default:
			log.WithError(err).Error("Failed to save contact mapping")
			return c.Send(fmt.Sprintf("Failed to save override: %s", err.Error()))
		}
	}

	log.Info("Contact mapping saved")
	msg := fmt.Sprintf("Saved %s\n  to: %s", view.EntityID, view.To)
	if view.CC != "" {
		msg += fmt.Sprintf("\n  cc: %s", view.CC)
	}
	return c.Send(msg)
}

func (h *CommandHandlers) unmapContact(c telebot.Context) error {
	log := h.logger(c, "/unmap")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	args := c.Args()
	if len(args) != 2 {
		return c.Send("Invalid command format. Use: /unmap <invoice|po> <ID>")
	}
	kind, ok := parseKindArg(args[0])
	if !ok {
		return c.Send(fmt.Sprintf("Unknown kind %q. Use invoice or po.", args[0]))
	}
	log = log.WithFields(logrus.Fields{"kind": kind, "entity_id": args[1]})

	if err := h.admin.DeleteMapping(h.ctx, kind, args[1]); err != nil {
		if errors.Is(err, app.ErrMappingNotFound) {
			log.Warn("Contact mapping to delete not found")
			return c.Send(fmt.Sprintf("No override for %s.", args[1]))
		}
		log.WithError(err).Error("Failed to delete contact mapping")
		return c.Send(fmt.Sprintf("Failed to delete override: %s", err.Error()))
	}
	log.Info("Contact mapping deleted")
	return c.Send(fmt.Sprintf("Deleted override for %s.", args[1]))
}

func (h *CommandHandlers) globalCC(c telebot.Context) error {
	log := h.logger(c, "/globalcc")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	args := c.Args()
	if len(args) < 1 || len(args) > 2 {
		return c.Send("Invalid command format. Use: /globalcc <invoice|po> [addresses|-]")
	}
	kind, ok := parseKindArg(args[0])
	if !ok {
		return c.Send(fmt.Sprintf("Unknown kind %q. Use invoice or po.", args[0]))
	}

	if len(args) == 1 {
		cfg, err := h.admin.GlobalCC(h.ctx)
		if err != nil {
			log.WithError(err).Error("Failed to read global CC")
			return c.Send(fmt.Sprintf("Failed to read global CC: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("%s global CC: %s", kind.Title(), orDash(strings.Join(cfg.For(kind), ", "))))
	}

	value := args[1]
	if value == "-" {
		value = ""
	}
	cfg, err := h.admin.SetGlobalCC(h.ctx, kind, value)
	if err != nil {
		log.WithError(err).Error("Failed to update global CC")
		return c.Send(fmt.Sprintf("Failed to update global CC: %s", err.Error()))
	}
	log.WithField("kind", kind).Info("Global CC updated")
	return c.Send(fmt.Sprintf("%s global CC set to: %s", kind.Title(), orDash(strings.Join(cfg.For(kind), ", "))))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
