// Package ai wraps the vision-capable language model behind a small
// request/response interface: submit a document payload plus an extraction
// prompt, receive text within a timeout, fail otherwise.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

// Payload is one document ready for submission: encoded bytes and their
// MIME type.
type Payload struct {
	Data []byte
	MIME string
}

// Model is the extraction capability consumed by the processor. The context
// carries the inner model-call timeout.
type Model interface {
	Extract(ctx context.Context, payload Payload, prompt string) (string, error)
}

// RetryPolicy retries an operation on transient failures with exponential
// backoff. Only ErrModelUnavailable is retried; timeouts and context
// cancellation surface immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// DefaultRetryPolicy covers transient model backend hiccups.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: time.Second, Factor: 2}
}

// UnavailableModel stands in when no API key is configured. The agent
// still serves its HTTP surface; every extraction fails with
// ErrModelUnavailable until a key is provided and the agent restarted.
type UnavailableModel struct{}

func NewUnavailableModel() *UnavailableModel { return &UnavailableModel{} }

func (*UnavailableModel) Extract(context.Context, Payload, string) (string, error) {
	return "", fmt.Errorf("%w: no API key configured", invoice.ErrModelUnavailable)
}

// Do runs fn up to MaxAttempts times. The last error is returned when all
// attempts fail.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, invoice.ErrModelUnavailable) {
			return err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * p.Factor)
	}
	return err
}
