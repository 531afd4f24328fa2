package service

import (
	"context"
	"errors"
	"time"

	"github.com/SoCloseSociety/WhatsappSender/internal/dispatch"
	"github.com/SoCloseSociety/WhatsappSender/internal/domain"
	"github.com/SoCloseSociety/WhatsappSender/internal/store"
)

var (
	ErrNotFound      = errors.New("broadcast not found")
	ErrAlreadySent   = errors.New("broadcast already sent")
	ErrNoRecipients  = errors.New("no subscribed recipients")
	ErrMissingFields = errors.New("missing required fields")
)

type Store interface {
	CreateBroadcast(ctx context.Context, title, message string, now time.Time) (int64, error)
	GetBroadcast(ctx context.Context, id int64) (store.Broadcast, bool, error)
	SetBroadcastStatus(ctx context.Context, id int64, status string, sentAt *time.Time) error
	BroadcastStats(ctx context.Context, id int64) (map[string]int, error)
	ListSubscribed(ctx context.Context) ([]store.User, error)
}

// BroadcastService owns the broadcast lifecycle: draft -> sending -> sent.
// The heavy lifting is delegated to the dispatcher.
type BroadcastService struct {
	Store      Store
	Dispatcher *dispatch.Dispatcher
	Now        func() time.Time
}

func (s *BroadcastService) Create(ctx context.Context, title, message string) (int64, error) {
	if title == "" || message == "" {
		return 0, ErrMissingFields
	}
	return s.Store.CreateBroadcast(ctx, title, message, s.Now())
}

func (s *BroadcastService) Get(ctx context.Context, id int64) (store.Broadcast, map[string]int, error) {
	b, found, err := s.Store.GetBroadcast(ctx, id)
	if err != nil {
		return store.Broadcast{}, nil, err
	}
	if !found {
		return store.Broadcast{}, nil, ErrNotFound
	}
	stats, err := s.Store.BroadcastStats(ctx, id)
	if err != nil {
		return store.Broadcast{}, nil, err
	}
	return b, stats, nil
}

// Run dispatches a broadcast to every subscribed user. It is synchronous;
// ctx cancellation stops the loop between recipients with everything already
// submitted recorded. The bulk result is returned even on cancellation so
// the caller sees what was attempted.
func (s *BroadcastService) Run(ctx context.Context, id int64) (domain.BulkResult, error) {
	b, found, err := s.Store.GetBroadcast(ctx, id)
	if err != nil {
		return domain.BulkResult{}, err
	}
	if !found {
		return domain.BulkResult{}, ErrNotFound
	}
	if b.Status == "sent" {
		return domain.BulkResult{}, ErrAlreadySent
	}

	users, err := s.Store.ListSubscribed(ctx)
	if err != nil {
		return domain.BulkResult{}, err
	}
	if len(users) == 0 {
		return domain.BulkResult{}, ErrNoRecipients
	}

	recipients := make([]domain.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, domain.Recipient{
			Phone:     u.Phone,
			FirstName: u.Name,
			UserID:    u.ID,
		})
	}

	if err := s.Store.SetBroadcastStatus(ctx, id, "sending", nil); err != nil {
		return domain.BulkResult{}, err
	}

	res, dispatchErr := s.Dispatcher.Dispatch(ctx, recipients, b.Message, id)

	now := s.Now()
	finalStatus := "sent"
	if dispatchErr != nil {
		finalStatus = "cancelled"
	}
	// status write runs on a fresh context so a cancelled dispatch still
	// records where the broadcast ended up
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Store.SetBroadcastStatus(finishCtx, id, finalStatus, &now); err != nil {
		return res, err
	}
	return res, dispatchErr
}
