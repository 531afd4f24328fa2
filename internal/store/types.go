package store

import "time"

// Attempt is one message attempt row. Created exactly once per recipient per
// dispatch; only Status (and UpdatedAt) mutate afterwards, exclusively via
// UpdateStatusByProviderSID.
type Attempt struct {
	ID          string
	BroadcastID int64
	UserID      int64
	Phone       string
	Direction   string
	Body        string
	Status      string
	ProviderSID string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AttemptInsert struct {
	ID          string
	BroadcastID int64 // 0 = not part of a broadcast
	UserID      int64 // 0 = unknown sender/recipient
	Phone       string
	Direction   string
	Body        string
	Status      string
	ProviderSID string
	Error       string
	Now         time.Time
}

// StatusUpdate is the reconciler's write: an unconditional overwrite of the
// attempt matched by provider message id.
type StatusUpdate struct {
	ProviderSID string
	Status      string
	Now         time.Time
}

type User struct {
	ID         int64
	Phone      string
	Name       string
	Subscribed bool
	FirstSeen  time.Time
	LastSeen   time.Time
}

type Broadcast struct {
	ID        int64
	Title     string
	Message   string
	Status    string
	CreatedAt time.Time
	SentAt    *time.Time
}

type Template struct {
	Name     string
	Category string
	Body     string
}
