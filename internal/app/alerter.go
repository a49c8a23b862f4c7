package app

import "context"

// Alerter pushes operator-facing messages (guard violations, exhausted deliveries,
// outages) to a side channel. Implementations must not block for long and must
// swallow their own errors.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// Reporter is implemented by alerters that can deliver scheduled reports outside their
// alert rate limit.
type Reporter interface {
	Report(ctx context.Context, text string)
}

// NopAlerter discards alerts.
type NopAlerter struct{}

func (NopAlerter) Alert(context.Context, string) {}
