package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"replayhub/internal/platform/models"
)

// maxLoggedBody caps how much of a failed response is logged.
const maxLoggedBody = 4096

// Resolver looks up a live webhook by id. A nil webhook with a nil error
// means the destination is unknown or deleted.
type Resolver interface {
	GetByID(ctx context.Context, id int64) (*models.Webhook, error)
}

// Stats counts delivery outcomes since the dispatcher was created.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Delivery is the outcome of one successful POST. Response holds the decoded
// JSON body, or the raw text when the body is not JSON, or nil when the body
// could not be read.
type Delivery struct {
	WebhookID  int64
	StatusCode int
	Response   interface{}
}

type Dispatcher struct {
	resolver Resolver
	client   *http.Client
	workers  int
	logger   zerolog.Logger

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher creates a dispatcher that delivers to at most workers
// destinations at once. A zero timeout leaves the transport default.
func NewDispatcher(resolver Resolver, workers int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		resolver: resolver,
		client:   &http.Client{Timeout: timeout},
		workers:  workers,
		logger:   log.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

type destination struct {
	webhook *models.Webhook
	events  []json.RawMessage
}

// DeliverBatch sends every notification to its destination webhook. Each
// destination is resolved once per call; unknown destinations are dropped
// and logged. Events to one destination are delivered in input order;
// distinct destinations are delivered concurrently. Failures are logged and
// counted, never returned.
func (d *Dispatcher) DeliverBatch(ctx context.Context, batch []models.Notification) {
	resolved := make(map[int64]*destination)
	var order []*destination

	for _, n := range batch {
		dest, seen := resolved[n.Destination]
		if !seen {
			webhook, err := d.resolver.GetByID(ctx, n.Destination)
			if err != nil {
				d.logger.Error().Err(err).Int64("webhook_id", n.Destination).Msg("failed to resolve webhook")
			}
			if webhook != nil {
				dest = &destination{webhook: webhook}
				order = append(order, dest)
			}
			resolved[n.Destination] = dest
		}

		if dest == nil {
			d.dropped.Add(1)
			d.logger.Error().Int64("webhook_id", n.Destination).Msg("webhook not found, event dropped")
			continue
		}
		dest.events = append(dest.events, n.Data)
	}

	jobs := make(chan *destination)
	var wg sync.WaitGroup

	workers := d.workers
	if len(order) < workers {
		workers = len(order)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dest := range jobs {
				for _, payload := range dest.events {
					d.deliverSafe(ctx, dest.webhook, payload)
				}
			}
		}()
	}

	for _, dest := range order {
		jobs <- dest
	}
	close(jobs)
	wg.Wait()
}

// deliverSafe isolates a panicking delivery from its siblings.
func (d *Dispatcher) deliverSafe(ctx context.Context, webhook *models.Webhook, payload json.RawMessage) {
	defer func() {
		if p := recover(); p != nil {
			d.failed.Add(1)
			d.logger.Error().Int64("webhook_id", webhook.WebhookID).Interface("panic", p).Msg("webhook delivery panicked")
		}
	}()

	if webhook.Type != models.TypeWebhook {
		d.logger.Debug().Int64("webhook_id", webhook.WebhookID).Str("type", webhook.Type).Msg("skipping non-http integration")
		return
	}

	delivery, err := d.Deliver(ctx, webhook, payload)
	if err != nil {
		d.failed.Add(1)
		d.logger.Error().Err(err).Int64("webhook_id", webhook.WebhookID).Str("endpoint", webhook.Endpoint).Msg("webhook delivery failed")
		return
	}

	d.delivered.Add(1)
	d.logger.Debug().Int64("webhook_id", webhook.WebhookID).Int("status", delivery.StatusCode).Msg("webhook delivered")
}

// DeliveryError reports a response outside [200, 300).
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook responded with HTTP %d: %s", e.StatusCode, e.Body)
}

// Deliver performs one POST of payload to webhook. The Authorization header
// is set only when the webhook carries one.
func (d *Dispatcher) Deliver(ctx context.Context, webhook *models.Webhook, payload json.RawMessage) (*Delivery, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if webhook.AuthHeader != "" {
		req.Header.Set("Authorization", webhook.AuthHeader)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxLoggedBody {
			body = body[:maxLoggedBody]
		}
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	delivery := &Delivery{WebhookID: webhook.WebhookID, StatusCode: resp.StatusCode}
	if readErr != nil {
		d.logger.Info().Int64("webhook_id", webhook.WebhookID).Msg("no response found")
		return delivery, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		delivery.Response = decoded
	} else {
		delivery.Response = string(body)
	}
	return delivery, nil
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
