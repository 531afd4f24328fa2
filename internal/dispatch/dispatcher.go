// Package dispatch drives the rate-limited bulk send loop.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/SoCloseSociety/WhatsappSender/internal/domain"
	"github.com/SoCloseSociety/WhatsappSender/internal/observability"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
	"github.com/SoCloseSociety/WhatsappSender/internal/ratelimit"
	"github.com/SoCloseSociety/WhatsappSender/internal/store"
	"github.com/SoCloseSociety/WhatsappSender/internal/template"
	"github.com/SoCloseSociety/WhatsappSender/internal/util"
)

// Stored bodies are bounded; longer renders are truncated for the log row.
const maxStoredBody = 500

type Store interface {
	InsertAttempt(ctx context.Context, in store.AttemptInsert) error
	LookupUserByPhone(ctx context.Context, phone string) (int64, bool, error)
}

// Progress is one per-recipient event. Current is 1-based.
type Progress struct {
	Current int
	Total   int
	Status  domain.Status
}

type Dispatcher struct {
	Sender  provider.Sender
	Store   Store
	Limiter *ratelimit.Limiter
	Breaker *gobreaker.CircuitBreaker

	// OnProgress, if set, is called after each recipient is recorded. It
	// runs on the dispatch goroutine; slow consumers slow the loop.
	OnProgress func(Progress)

	NewID func() string
	Now   func() time.Time
}

// Dispatch sends the rendered message to every recipient in order. The loop
// is strictly sequential: the shared limiter and the provider call are the
// only suspension points, so two concurrent Dispatch calls sharing a limiter
// split the configured throughput between them instead of doubling it.
//
// One attempt row is persisted per recipient before the loop advances; a
// recipient already submitted to the provider is therefore always recorded,
// even when ctx is cancelled. Cancellation is honored between recipients
// only. Per-recipient failures never stop the loop and are not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []domain.Recipient, messageTemplate string, broadcastID int64) (domain.BulkResult, error) {
	res := domain.BulkResult{
		Total:   len(recipients),
		Results: make([]domain.RecipientResult, 0, len(recipients)),
	}

	for i, rc := range recipients {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body := template.Render(messageTemplate, map[string]string{
			"first_name": rc.FirstName,
			"last_name":  rc.LastName,
			"name":       rc.DisplayName(),
			"phone":      rc.Phone,
		})

		if err := d.Limiter.Wait(ctx); err != nil {
			// nothing submitted for this recipient yet
			return res, err
		}

		start := d.now()
		out := d.send(ctx, rc.Phone, body)
		observability.SendLatency.Observe(time.Since(start).Seconds())
		observability.SendOutcomes.WithLabelValues(d.Sender.Name(), out.Kind.String()).Inc()

		status := domain.StatusSent
		errText := ""
		if out.Kind != provider.OutcomeSubmitted {
			status = domain.StatusFailed
			errText = out.Reason
			slog.Error("send failed", "phone", rc.Phone, "result", out.Kind.String(), "reason", out.Reason)
		}

		d.record(ctx, rc, broadcastID, body, status, out.ProviderMsgID, errText)

		if status == domain.StatusSent {
			res.Sent++
		} else {
			res.Failed++
		}
		res.Results = append(res.Results, domain.RecipientResult{
			Phone:         rc.Phone,
			Status:        status,
			ProviderMsgID: out.ProviderMsgID,
			Error:         errText,
		})

		if d.OnProgress != nil {
			d.OnProgress(Progress{Current: i + 1, Total: res.Total, Status: status})
		}
	}
	return res, nil
}

// send runs the provider call through the circuit breaker when one is
// configured. Transport failures count against the breaker; provider-side
// rejections do not (the provider is reachable and answering).
func (d *Dispatcher) send(ctx context.Context, to, body string) provider.Outcome {
	if d.Breaker == nil {
		return d.Sender.Send(ctx, to, body)
	}
	v, err := d.Breaker.Execute(func() (any, error) {
		out := d.Sender.Send(ctx, to, body)
		if out.Kind == provider.OutcomeTransportFailure {
			return out, errors.New(out.Reason)
		}
		return out, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return provider.TransportFailure("provider circuit open")
	}
	if out, ok := v.(provider.Outcome); ok {
		return out
	}
	return provider.TransportFailure(err.Error())
}

// record persists the attempt row. A persistence failure here is logged and
// the loop continues; the remaining recipients still get their sends.
func (d *Dispatcher) record(ctx context.Context, rc domain.Recipient, broadcastID int64, body string, status domain.Status, providerSID, errText string) {
	userID := rc.UserID
	if userID == 0 {
		if id, found, err := d.Store.LookupUserByPhone(ctx, rc.Phone); err == nil && found {
			userID = id
		}
	}
	in := store.AttemptInsert{
		ID:          d.newID(),
		BroadcastID: broadcastID,
		UserID:      userID,
		Phone:       rc.Phone,
		Direction:   "outbound",
		Body:        util.TruncateRunes(body, maxStoredBody),
		Status:      string(status),
		ProviderSID: providerSID,
		Error:       errText,
		Now:         d.now(),
	}
	if err := d.Store.InsertAttempt(ctx, in); err != nil {
		slog.Error("insert attempt failed", "err", err, "phone", rc.Phone, "provider_sid", providerSID)
	}
}

func (d *Dispatcher) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return util.NewAttemptID()
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return util.NowUTC()
}
