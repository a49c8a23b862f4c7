package app

import (
	"testing"

	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/delivery"

	"github.com/stretchr/testify/assert"
)

func TestSafetyGuard_Disabled(t *testing.T) {
	g := NewSafetyGuard(false, "qa@us.com")
	in := contact.Recipients{To: []string{"real@customer.com"}, CC: []string{"cc@us.com"}}

	out, prefix := g.Apply(in)
	assert.Equal(t, in, out)
	assert.Empty(t, prefix)
	assert.NoError(t, g.Check(delivery.Message{To: in.To, CC: in.CC}))
}

func TestSafetyGuard_Redirects(t *testing.T) {
	g := NewSafetyGuard(true, " qa@us.com ")

	out, prefix := g.Apply(contact.Recipients{To: []string{"real@customer.com", "b@customer.com"}, CC: []string{"cc@us.com"}})
	assert.Equal(t, []string{"qa@us.com"}, out.To)
	assert.Empty(t, out.CC)
	assert.Equal(t, "[TEST - Originally for real@customer.com, b@customer.com] ", prefix)
	assert.NoError(t, g.Check(delivery.Message{To: out.To}))
}

func TestSafetyGuard_CheckBlocksLeaks(t *testing.T) {
	g := NewSafetyGuard(true, "qa@us.com")

	tests := []delivery.Message{
		{To: []string{"real@customer.com"}},
		{To: []string{"qa@us.com", "real@customer.com"}},
		{To: []string{"QA@us.com"}},
		{To: []string{"qa@us.com"}, CC: []string{"real@customer.com"}},
		{},
	}
	for _, msg := range tests {
		assert.ErrorIs(t, g.Check(msg), ErrGuardViolation, "to=%v cc=%v", msg.To, msg.CC)
	}

	assert.ErrorIs(t, NewSafetyGuard(true, "").Check(delivery.Message{To: []string{""}}), ErrGuardViolation)
}
