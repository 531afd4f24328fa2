// Package inbound handles messages users send to the bot number:
// subscription lifecycle keywords plus a help fallback. Catalog browsing and
// search live in the admin/CRUD layer, not here.
package inbound

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SoCloseSociety/WhatsappSender/internal/domain"
	"github.com/SoCloseSociety/WhatsappSender/internal/observability"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
	"github.com/SoCloseSociety/WhatsappSender/internal/ratelimit"
	"github.com/SoCloseSociety/WhatsappSender/internal/store"
	"github.com/SoCloseSociety/WhatsappSender/internal/util"
)

const (
	maxStoredBody = 500
	rateWindow    = time.Minute
)

type Store interface {
	UpsertUser(ctx context.Context, phone, name string, now time.Time) (int64, error)
	SetSubscribed(ctx context.Context, phone string, subscribed bool, now time.Time) error
	InsertAttempt(ctx context.Context, in store.AttemptInsert) error
	GetTemplate(ctx context.Context, name string) (store.Template, bool, error)
}

type Router struct {
	Store  Store
	Sender provider.Sender

	// Limiter is the shared outbound throttle; replies acquire a permit
	// like any other send. Nil skips throttling.
	Limiter *ratelimit.Limiter

	// Redis backs the per-sender fixed-window limit. Nil disables limiting.
	Redis     *redis.Client
	PerMinute int

	NewID func() string
	Now   func() time.Time
}

// Handle processes one inbound message. Errors are absorbed: an inbound
// message must never crash the webhook handler, and a reply failure only
// loses the reply.
func (r *Router) Handle(ctx context.Context, phone, text, name string) {
	if phone == "" || text == "" {
		return
	}
	if !r.allow(ctx, phone) {
		observability.InboundMessages.WithLabelValues("rate_limited").Inc()
		slog.Warn("inbound rate limit exceeded", "phone", phone)
		return
	}

	userID, err := r.Store.UpsertUser(ctx, phone, name, r.now())
	if err != nil {
		slog.Error("upsert user failed", "err", err, "phone", phone)
	}
	r.log(ctx, userID, phone, "inbound", text, string(domain.StatusQueued), "", "")

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "stop":
		observability.InboundMessages.WithLabelValues("unsubscribe").Inc()
		if err := r.Store.SetSubscribed(ctx, phone, false, r.now()); err != nil {
			slog.Error("unsubscribe failed", "err", err, "phone", phone)
		}
		r.reply(ctx, userID, phone, "Tu as ete desabonne. Tape *start* pour te reabonner.")
	case "start", "menu", "bonjour", "salut", "hi", "hello":
		observability.InboundMessages.WithLabelValues("subscribe").Inc()
		if err := r.Store.SetSubscribed(ctx, phone, true, r.now()); err != nil {
			slog.Error("resubscribe failed", "err", err, "phone", phone)
		}
		r.replyTemplate(ctx, userID, phone, "welcome",
			"Bienvenue ! Tape *aide* pour obtenir de l'aide.")
	case "aide", "help", "?":
		observability.InboundMessages.WithLabelValues("help").Inc()
		r.replyTemplate(ctx, userID, phone, "help",
			"Commandes: *aide*, *stop*, *start*.")
	default:
		observability.InboundMessages.WithLabelValues("fallback").Inc()
		r.reply(ctx, userID, phone,
			"Je n'ai pas compris. Tape *aide* pour voir les commandes.")
	}
}

// allow implements a fixed window of PerMinute messages per sender. Redis
// being down fails open: dropping real user messages is worse than briefly
// losing the limit.
func (r *Router) allow(ctx context.Context, phone string) bool {
	if r.Redis == nil || r.PerMinute <= 0 {
		return true
	}
	key := "inbound:" + phone
	n, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("inbound limiter unavailable", "err", err)
		return true
	}
	if n == 1 {
		if err := r.Redis.Expire(ctx, key, rateWindow).Err(); err != nil {
			// a counted key without a TTL would limit this sender forever
			slog.Warn("inbound limiter unavailable", "err", err)
			r.Redis.Del(ctx, key)
			return true
		}
	}
	return n <= int64(r.PerMinute)
}

func (r *Router) replyTemplate(ctx context.Context, userID int64, phone, templateName, fallback string) {
	body := fallback
	if tpl, found, err := r.Store.GetTemplate(ctx, templateName); err == nil && found {
		body = tpl.Body
	}
	r.reply(ctx, userID, phone, body)
}

func (r *Router) reply(ctx context.Context, userID int64, phone, body string) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			slog.Warn("reply dropped, send throttle interrupted", "err", err, "phone", phone)
			return
		}
	}
	out := r.Sender.Send(ctx, phone, body)
	observability.SendOutcomes.WithLabelValues(r.Sender.Name(), out.Kind.String()).Inc()

	status := domain.StatusSent
	errText := ""
	if out.Kind != provider.OutcomeSubmitted {
		status = domain.StatusFailed
		errText = out.Reason
		slog.Error("reply failed", "phone", phone, "reason", out.Reason)
	}
	r.log(ctx, userID, phone, "outbound", body, string(status), out.ProviderMsgID, errText)
}

func (r *Router) log(ctx context.Context, userID int64, phone, direction, body, status, providerSID, errText string) {
	in := store.AttemptInsert{
		ID:          r.newID(),
		UserID:      userID,
		Phone:       phone,
		Direction:   direction,
		Body:        util.TruncateRunes(body, maxStoredBody),
		Status:      status,
		ProviderSID: providerSID,
		Error:       errText,
		Now:         r.now(),
	}
	if err := r.Store.InsertAttempt(ctx, in); err != nil {
		slog.Error("log inbound attempt failed", "err", err, "phone", phone, "direction", direction)
	}
}

func (r *Router) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return util.NewAttemptID()
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return util.NowUTC()
}
