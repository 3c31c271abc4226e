package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"cometrelay/internal/model"
)

// Dispatcher sends assembled payloads to configured delivery targets. It is
// deliberately best-effort: one attempt per target, no retries, no backoff,
// response bodies discarded. Operational recovery is a manual replay.
type Dispatcher struct {
	client *http.Client
	log    *zap.Logger
}

func New(log *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Deliver sends one JSON-encoded payload to one target. Processing targets
// carry the x-api-key header; chat targets authenticate by URL alone.
func (d *Dispatcher) Deliver(ctx context.Context, target model.DeliveryTarget, payload interface{}) model.DeliveryResult {
	result := model.DeliveryResult{Target: target}

	body, err := json.Marshal(payload)
	if err != nil {
		result.Err = fmt.Errorf("failed to encode payload: %w", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		result.Err = fmt.Errorf("failed to build request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	if target.APIKey != "" {
		req.Header.Set("x-api-key", target.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("failed to send to %s target: %w", target.Kind, err)
		d.log.Error("Delivery failed",
			zap.String("target", string(target.Kind)),
			zap.String("url", target.URL),
			zap.Error(err),
		)
		return result
	}
	// The trigger ignores responses; drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if !result.OK() {
		d.log.Warn("Delivery target returned non-2xx",
			zap.String("target", string(target.Kind)),
			zap.String("url", target.URL),
			zap.Int("status", resp.StatusCode),
		)
	} else {
		d.log.Debug("Delivered payload",
			zap.String("target", string(target.Kind)),
			zap.Int("status", resp.StatusCode),
		)
	}
	return result
}

// DeliverAll sends the same payload to every target. Targets are attempted
// independently and concurrently; one target failing never prevents the
// others from being attempted. Results come back in target order.
func (d *Dispatcher) DeliverAll(ctx context.Context, targets []model.DeliveryTarget, payload interface{}) []model.DeliveryResult {
	results := make([]model.DeliveryResult, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target model.DeliveryTarget) {
			defer wg.Done()
			results[i] = d.Deliver(ctx, target, payload)
		}(i, target)
	}
	wg.Wait()

	return results
}

// DeliverChat broadcasts a message text to every chat target. The same text
// may go to more than one channel for one event; duplicates are intentional.
func (d *Dispatcher) DeliverChat(ctx context.Context, targets []model.DeliveryTarget, text string) []model.DeliveryResult {
	results := make([]model.DeliveryResult, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target model.DeliveryTarget) {
			defer wg.Done()
			msg := model.ChatMessage{Channel: target.Channel, Text: text}
			results[i] = d.Deliver(ctx, target, msg)
		}(i, target)
	}
	wg.Wait()

	return results
}
