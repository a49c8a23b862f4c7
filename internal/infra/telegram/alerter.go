package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"document_notifier/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultAlertsPerMinute = 6
	alertQueueSize         = 64
)

// OpsAlerter posts operator messages to one chat from a background worker, so callers
// never wait on Telegram. Alerts over the rate limit, or arriving while the queue is
// full, are dropped and counted; the count is reported with the next alert that gets
// through. Reports (digests) skip the rate limit.
type OpsAlerter struct {
	client  telegram.Client
	chatID  int64
	limiter *rate.Limiter
	log     *logrus.Entry

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu         sync.Mutex
	suppressed int
}

func NewOpsAlerter(client telegram.Client, chatID int64, perMinute int, log *logrus.Entry) *OpsAlerter {
	if perMinute <= 0 {
		perMinute = defaultAlertsPerMinute
	}
	return &OpsAlerter{
		client:  client,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		log:     log.WithField("component", "ops_alerter"),
		queue:   make(chan string, alertQueueSize),
	}
}

// Start runs the send worker until ctx is done or Close is called.
func (a *OpsAlerter) Start(ctx context.Context) {
	a.once.Do(func() {
		ctx, a.cancel = context.WithCancel(ctx)
		a.wg.Add(1)
		go a.worker(ctx)
	})
}

// Close stops the worker after it has sent what is already queued.
func (a *OpsAlerter) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *OpsAlerter) Alert(_ context.Context, text string) {
	if !a.limiter.Allow() {
		a.drop(text, "Alert rate limit reached, dropping alert")
		return
	}
	a.mu.Lock()
	dropped := a.suppressed
	a.suppressed = 0
	a.mu.Unlock()
	if dropped > 0 {
		text = fmt.Sprintf("(%d earlier alerts suppressed)\n%s", dropped, text)
	}
	a.enqueue(text)
}

// Report queues text without consuming the alert rate limit.
func (a *OpsAlerter) Report(_ context.Context, text string) {
	a.enqueue(text)
}

func (a *OpsAlerter) enqueue(text string) {
	select {
	case a.queue <- text:
	default:
		a.drop(text, "Alert queue full, dropping alert")
	}
}

func (a *OpsAlerter) drop(text, reason string) {
	a.mu.Lock()
	a.suppressed++
	a.mu.Unlock()
	a.log.WithField("alert", text).Warn(reason)
}

func (a *OpsAlerter) worker(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case text := <-a.queue:
					a.send(text)
				default:
					return
				}
			}
		case text := <-a.queue:
			a.send(text)
		}
	}
}

func (a *OpsAlerter) send(text string) {
	if err := a.client.SendMessage(a.chatID, text, nil); err != nil {
		a.log.WithError(err).WithField("chat_id", a.chatID).Error("Failed to send alert")
	}
}
