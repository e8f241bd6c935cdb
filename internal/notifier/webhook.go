package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantrail-lab/quantrail/internal/logger"
)

const (
	// webhookQueueSize bounds the outbound queue. A full queue drops the
	// message rather than blocking the scan cycle.
	webhookQueueSize = 256
	// webhookTimeout caps one delivery attempt.
	webhookTimeout = 5 * time.Second
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// URL is the webhook endpoint messages are posted to. Required when the
	// webhook provider is selected; the config loader enforces that.
	URL string `yaml:"url" json:"url" validate:"omitempty,url"`
	// MessagesPerMinute caps the delivery rate. Zero means 30.
	MessagesPerMinute int `yaml:"messages_per_minute" json:"messages_per_minute" validate:"gte=0"`
}

type webhookPayload struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	SentAt   string `json:"sent_at"`
}

// Webhook posts messages as JSON to a single webhook URL from a background
// worker. Enqueueing never blocks; excess messages are dropped and counted.
type Webhook struct {
	url        string
	httpClient *http.Client
	queue      chan webhookPayload
	limiter    *rate.Limiter
	log        *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewWebhook creates the notifier and starts its delivery worker. Call Close
// to stop the worker and flush nothing further.
func NewWebhook(config WebhookConfig, log *logger.Logger) *Webhook {
	perMinute := config.MessagesPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Webhook{
		url:        config.URL,
		httpClient: &http.Client{Timeout: webhookTimeout},
		queue:      make(chan webhookPayload, webhookQueueSize),
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		log:        log,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go w.worker(ctx)

	return w
}

// Notify enqueues the message. If the queue is full the message is dropped
// with a warning.
func (w *Webhook) Notify(message string, category Category) {
	payload := webhookPayload{
		Text:     message,
		Category: string(category),
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	}

	select {
	case w.queue <- payload:
	default:
		w.log.Warn("notification queue full, dropping message",
			zap.String("category", string(category)),
		)
	}
}

// Close stops the delivery worker. Queued but undelivered messages are
// discarded.
func (w *Webhook) Close() {
	w.cancel()
	<-w.done
}

func (w *Webhook) worker(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-w.queue:
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}

			w.deliver(ctx, payload)
		}
	}
}

func (w *Webhook) deliver(ctx context.Context, payload webhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("failed to marshal notification", zap.Error(err))

		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Error("failed to build notification request", zap.Error(err))

		return
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Warn("notification delivery failed", zap.Error(err))

		return
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.log.Warn("notification rejected by sink",
			zap.Int("status", resp.StatusCode),
			zap.String("category", payload.Category),
		)
	}
}

// Ensure Webhook implements Notifier.
var _ Notifier = (*Webhook)(nil)
