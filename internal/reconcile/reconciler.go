// Package reconcile applies asynchronous delivery-status callbacks to the
// message attempts the dispatcher recorded.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/SoCloseSociety/WhatsappSender/internal/domain"
	"github.com/SoCloseSociety/WhatsappSender/internal/observability"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
	"github.com/SoCloseSociety/WhatsappSender/internal/store"
	"github.com/SoCloseSociety/WhatsappSender/internal/util"
)

type Store interface {
	UpdateStatusByProviderSID(ctx context.Context, in store.StatusUpdate) (bool, error)
}

// Vendor status vocabularies. Only statuses listed here are ever applied;
// anything else is logged and dropped, never guessed into a canonical value.
var twilioStatuses = map[string]domain.Status{
	"accepted":    domain.StatusQueued,
	"queued":      domain.StatusQueued,
	"sending":     domain.StatusQueued,
	"sent":        domain.StatusSent,
	"delivered":   domain.StatusDelivered,
	"read":        domain.StatusRead,
	"failed":      domain.StatusFailed,
	"undelivered": domain.StatusFailed,
}

var metaStatuses = map[string]domain.Status{
	"sent":      domain.StatusSent,
	"delivered": domain.StatusDelivered,
	"read":      domain.StatusRead,
	"failed":    domain.StatusFailed,
}

type Reconciler struct {
	Store Store
	Now   func() time.Time
}

// Reconcile normalizes one provider callback and overwrites the matched
// attempt's status. The overwrite is unconditional: duplicates are no-ops
// and out-of-order callbacks resolve last-write-wins, matching provider
// redelivery behavior. An unknown provider message id is ignored without
// error; it only means the message was sent outside the tracked set.
// A non-nil return means a persistence failure the caller should surface
// (providers retry on non-2xx).
func (r *Reconciler) Reconcile(ctx context.Context, providerName, providerMsgID, vendorStatus string) error {
	if providerMsgID == "" || vendorStatus == "" {
		return nil
	}
	observability.WebhookEvents.WithLabelValues(providerName, vendorStatus).Inc()

	var vocab map[string]domain.Status
	switch providerName {
	case provider.NameTwilio:
		vocab = twilioStatuses
	case provider.NameMeta:
		vocab = metaStatuses
	default:
		observability.CallbacksDropped.WithLabelValues("unknown_provider").Inc()
		slog.Warn("callback from unknown provider dropped", "provider", providerName)
		return nil
	}

	status, ok := vocab[vendorStatus]
	if !ok {
		observability.CallbacksDropped.WithLabelValues("unknown_status").Inc()
		slog.Warn("unrecognized vendor status dropped",
			"provider", providerName, "status", vendorStatus, "provider_msg_id", providerMsgID)
		return nil
	}

	matched, err := r.Store.UpdateStatusByProviderSID(ctx, store.StatusUpdate{
		ProviderSID: providerMsgID,
		Status:      string(status),
		Now:         r.now(),
	})
	if err != nil {
		return err
	}
	if !matched {
		observability.CallbacksDropped.WithLabelValues("unknown_id").Inc()
		slog.Info("callback for untracked message ignored",
			"provider", providerName, "provider_msg_id", providerMsgID, "status", vendorStatus)
	}
	return nil
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return util.NowUTC()
}
