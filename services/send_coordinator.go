package services

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain"
	"dm-relay/errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// SendOutcome describes a send that did not fail.
type SendOutcome struct {
	// Attempts is the number of delivery calls made.
	Attempts     int
	Confirmation string
	// Skipped is set when the body was empty and nothing was sent.
	Skipped bool
}

type ISendCoordinator interface {
	Send(ctx context.Context, from, to, body string) (SendOutcome, error)
}

// SendCoordinator validates both parties, then submits the message with a
// bounded number of attempts. Attempts of one send are strictly sequential;
// sends to different peers are not serialised against each other.
type SendCoordinator struct {
	log       *slog.Logger
	validator IPresenceValidator
	delivery  contract.Delivery
	display   contract.Display
	policy    RetryPolicy
	clock     clock.Clock
}

func NewSendCoordinator(
	log *slog.Logger,
	validator IPresenceValidator,
	delivery contract.Delivery,
	display contract.Display,
	policy RetryPolicy,
	clk clock.Clock,
) *SendCoordinator {
	if clk == nil {
		clk = clock.New()
	}
	return &SendCoordinator{
		log:       log,
		validator: validator,
		delivery:  delivery,
		display:   display,
		policy:    policy.withDefaults(),
		clock:     clk,
	}
}

// Send delivers body from one registered client to another.
//
// Failures: ErrInvalidParty when either side does not validate (no delivery
// call is made), ErrSendUnconfirmed when the service answers 2xx without a
// confirmation (not retried), ErrSendExhausted after MaxAttempts failed calls.
// A cancelled ctx interrupts the backoff, never an attempt in flight.
func (c *SendCoordinator) Send(ctx context.Context, from, to, body string) (SendOutcome, error) {
	msg := domain.Message{From: from, To: to, Body: body}
	if msg.IsEmpty() {
		return SendOutcome{Skipped: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return SendOutcome{}, err
	}

	fromOK := c.validator.Validate(ctx, from)
	toOK := c.validator.Validate(ctx, to)
	if !fromOK || !toOK {
		var missing []string
		if !fromOK {
			missing = append(missing, fmt.Sprintf("sender %q", from))
		}
		if !toOK {
			missing = append(missing, fmt.Sprintf("receiver %q", to))
		}
		detail := strings.Join(missing, " and ") + " not registered"
		c.display.OnError(domain.KindInvalidParty, detail)
		return SendOutcome{}, fmt.Errorf("%w: %s", errors.ErrInvalidParty, detail)
	}

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		receipt, err := c.attempt(ctx, msg)
		if err == nil {
			if receipt.Confirmation == "" {
				detail := receipt.Error
				if detail == "" {
					detail = "no confirmation in delivery reply"
				}
				c.log.Warn("Delivery not confirmed", "from", from, "to", to, "attempt", attempt, "detail", detail)
				c.display.OnError(domain.KindSendUnconfirmed, detail)
				return SendOutcome{Attempts: attempt}, fmt.Errorf("%w: %s", errors.ErrSendUnconfirmed, detail)
			}
			c.log.Debug("Message delivered", "from", from, "to", to, "attempt", attempt)
			c.display.OnMessageSent(from, body)
			return SendOutcome{Attempts: attempt, Confirmation: receipt.Confirmation}, nil
		}

		c.log.Warn("Send attempt failed", "from", from, "to", to,
			"attempt", attempt, "max", c.policy.MaxAttempts, "error", err)
		if attempt == c.policy.MaxAttempts {
			break
		}
		if err := c.wait(ctx, c.policy.Backoff(attempt)); err != nil {
			return SendOutcome{Attempts: attempt}, err
		}
	}

	detail := fmt.Sprintf("message to %s not delivered after %d attempts", to, c.policy.MaxAttempts)
	c.display.OnError(domain.KindSendExhausted, detail)
	return SendOutcome{Attempts: c.policy.MaxAttempts}, fmt.Errorf("%w: %s", errors.ErrSendExhausted, detail)
}

// attempt runs one delivery call. The caller's cancellation does not reach
// it; only the per-attempt timeout does.
func (c *SendCoordinator) attempt(ctx context.Context, msg domain.Message) (contract.DeliveryReceipt, error) {
	attemptCtx := context.WithoutCancel(ctx)
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, c.policy.AttemptTimeout)
		defer cancel()
	}
	return c.delivery.Send(attemptCtx, msg)
}

func (c *SendCoordinator) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
