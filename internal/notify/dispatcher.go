package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
)

// DefaultTimeout bounds each delivery.
const DefaultTimeout = 10 * time.Second

// Notifier fans payloads out to every configured URL. Delivery is fire and
// forget: each URL gets its own goroutine and timeout, and failures are only
// logged.
type Notifier struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSender replaces the webhook sender.
func WithSender(s Sender) Option {
	return func(n *Notifier) {
		n.sender = s
	}
}

// WithTimeout sets the per-URL delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		n.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithClock sets the time source for payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		n.now = now
	}
}

// NewNotifier creates a notifier posting through a WebhookSender by default.
func NewNotifier(opts ...Option) *Notifier {
	n := &Notifier{
		sender:  NewWebhookSender(),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// NotifyFailure reports a failed operation on repo.
func (n *Notifier) NotifyFailure(urls []string, repo *model.Repository, operation string, credentialID *string, message string) {
	if len(urls) == 0 {
		return
	}

	n.dispatch(urls, &ErrorPayload{
		Time:         timestamp(n.now()),
		Repo:         repoInfo(repo),
		Operation:    operation,
		CredentialID: copyString(credentialID),
		ErrorMessage: message,
	})
}

// NotifyDisabled reports that repo ran out of attempts and was disabled.
func (n *Notifier) NotifyDisabled(urls []string, repo *model.Repository, credentialID *string, message string, attempts int) {
	if len(urls) == 0 {
		return
	}

	n.dispatch(urls, &OutOfAttemptsPayload{
		Time:         timestamp(n.now()),
		Repo:         repoInfo(repo),
		CredentialID: copyString(credentialID),
		ErrorMessage: message,
		SyncAttempts: attempts,
	})
}

// Wait blocks until every delivery started so far has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(urls []string, payload any) {
	for _, url := range urls {
		n.wg.Go(func() {
			n.sendWithRecover(url, payload)
		})
	}
}

// sendWithRecover delivers one payload and recovers from sender panics.
func (n *Notifier) sendWithRecover(url string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("panic in notification sender",
				slog.String("sender", n.sender.Name()),
				slog.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.sender.Send(ctx, url, payload); err != nil {
		n.logger.Warn("failed to deliver notification",
			slog.String("sender", n.sender.Name()),
			slog.String("url", url),
			slog.Any("error", err),
		)
	}
}
