package app

import (
	"errors"
	"fmt"
	"strings"

	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/delivery"
)

// ErrGuardViolation aborts a send whose recipients escaped redirect mode.
var ErrGuardViolation = errors.New("safety redirect guard violation")

// SafetyGuard forces every message to one test address while redirect mode is on.
type SafetyGuard struct {
	enabled       bool
	testRecipient string
}

func NewSafetyGuard(enabled bool, testRecipient string) *SafetyGuard {
	return &SafetyGuard{enabled: enabled, testRecipient: strings.TrimSpace(testRecipient)}
}

func (g *SafetyGuard) Enabled() bool { return g.enabled }

// Apply replaces the recipients with the test address and returns the subject prefix
// naming the original recipients. Outside redirect mode it returns r unchanged.
func (g *SafetyGuard) Apply(r contact.Recipients) (contact.Recipients, string) {
	if !g.enabled {
		return r, ""
	}
	prefix := fmt.Sprintf("[TEST - Originally for %s] ", contact.JoinAddresses(r.To))
	return contact.Recipients{To: []string{g.testRecipient}}, prefix
}

// Check is the last test before a message leaves the process.
func (g *SafetyGuard) Check(msg delivery.Message) error {
	if !g.enabled {
		return nil
	}
	if g.testRecipient == "" {
		return fmt.Errorf("%w: no test recipient configured", ErrGuardViolation)
	}
	if len(msg.To) != 1 || msg.To[0] != g.testRecipient {
		return fmt.Errorf("%w: to=%v", ErrGuardViolation, msg.To)
	}
	if len(msg.CC) != 0 {
		return fmt.Errorf("%w: cc=%v", ErrGuardViolation, msg.CC)
	}
	return nil
}
