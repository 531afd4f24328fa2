package pg

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SoCloseSociety/WhatsappSender/internal/store"
)

type Store struct {
	DB *pgxpool.Pool

	initMu      sync.Mutex
	initialized bool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// EnsureSchema creates tables and seeds default templates. Idempotent; any
// entry point may call it, the work runs at most once per process.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	if _, err := s.DB.Exec(ctx, schema); err != nil {
		return err
	}
	for _, t := range defaultTemplates {
		_, err := s.DB.Exec(ctx, `
			INSERT INTO templates (name, category, body) VALUES ($1,$2,$3)
			ON CONFLICT (name) DO NOTHING
		`, t.name, t.category, t.body)
		if err != nil {
			return err
		}
	}
	s.initialized = true
	return nil
}

// ── Message attempts ─────────────────────────────────────────

func (s *Store) InsertAttempt(ctx context.Context, in store.AttemptInsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO message_attempts
			(id, broadcast_id, user_id, phone, direction, body, status, provider_sid, error, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
	`, in.ID, nullIfZero(in.BroadcastID), nullIfZero(in.UserID), in.Phone, in.Direction,
		in.Body, in.Status, in.ProviderSID, in.Error, in.Now)
	return err
}

// UpdateStatusByProviderSID overwrites the status of the attempt matched by
// provider message id. The single UPDATE serializes concurrent duplicate
// callbacks for the same id; last write wins. Returns false when no attempt
// carries the id.
func (s *Store) UpdateStatusByProviderSID(ctx context.Context, in store.StatusUpdate) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE message_attempts SET status=$2, updated_at=$3 WHERE provider_sid=$1
	`, in.ProviderSID, in.Status, in.Now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) GetAttempt(ctx context.Context, id string) (store.Attempt, bool, error) {
	var a store.Attempt
	var broadcastID, userID *int64
	row := s.DB.QueryRow(ctx, `
		SELECT id, broadcast_id, user_id, phone, direction, body, status, provider_sid, error, created_at, updated_at
		FROM message_attempts WHERE id=$1
	`, id)
	err := row.Scan(&a.ID, &broadcastID, &userID, &a.Phone, &a.Direction, &a.Body,
		&a.Status, &a.ProviderSID, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Attempt{}, false, nil
		}
		return store.Attempt{}, false, err
	}
	if broadcastID != nil {
		a.BroadcastID = *broadcastID
	}
	if userID != nil {
		a.UserID = *userID
	}
	return a, true, nil
}

// BroadcastStats counts outbound attempts of a broadcast per stored status.
func (s *Store) BroadcastStats(ctx context.Context, broadcastID int64) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT status, COUNT(*) FROM message_attempts
		WHERE broadcast_id=$1 AND direction='outbound'
		GROUP BY status
	`, broadcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		stats[st] = n
	}
	return stats, rows.Err()
}

// ── Users ────────────────────────────────────────────────────

func (s *Store) UpsertUser(ctx context.Context, phone, name string, now time.Time) (int64, error) {
	var id int64
	row := s.DB.QueryRow(ctx, `
		INSERT INTO users (phone, name, first_seen, last_seen)
		VALUES ($1,$2,$3,$3)
		ON CONFLICT (phone) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
		    last_seen = EXCLUDED.last_seen
		RETURNING id
	`, phone, name, now)
	err := row.Scan(&id)
	return id, err
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (store.User, bool, error) {
	var u store.User
	row := s.DB.QueryRow(ctx, `
		SELECT id, phone, name, subscribed, first_seen, last_seen FROM users WHERE phone=$1
	`, phone)
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Subscribed, &u.FirstSeen, &u.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.User{}, false, nil
		}
		return store.User{}, false, err
	}
	return u, true, nil
}

// LookupUserByPhone resolves a phone to a user id for attempt attribution.
func (s *Store) LookupUserByPhone(ctx context.Context, phone string) (int64, bool, error) {
	u, found, err := s.GetUserByPhone(ctx, phone)
	if err != nil || !found {
		return 0, false, err
	}
	return u.ID, true, nil
}

func (s *Store) SetSubscribed(ctx context.Context, phone string, subscribed bool, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE users SET subscribed=$2, last_seen=$3 WHERE phone=$1
	`, phone, subscribed, now)
	return err
}

func (s *Store) ListSubscribed(ctx context.Context) ([]store.User, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, phone, name, subscribed, first_seen, last_seen
		FROM users WHERE subscribed ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Phone, &u.Name, &u.Subscribed, &u.FirstSeen, &u.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ── Broadcasts ───────────────────────────────────────────────

func (s *Store) CreateBroadcast(ctx context.Context, title, message string, now time.Time) (int64, error) {
	var id int64
	row := s.DB.QueryRow(ctx, `
		INSERT INTO broadcasts (title, message, status, created_at)
		VALUES ($1,$2,'draft',$3) RETURNING id
	`, title, message, now)
	err := row.Scan(&id)
	return id, err
}

func (s *Store) GetBroadcast(ctx context.Context, id int64) (store.Broadcast, bool, error) {
	var b store.Broadcast
	row := s.DB.QueryRow(ctx, `
		SELECT id, title, message, status, created_at, sent_at FROM broadcasts WHERE id=$1
	`, id)
	err := row.Scan(&b.ID, &b.Title, &b.Message, &b.Status, &b.CreatedAt, &b.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Broadcast{}, false, nil
		}
		return store.Broadcast{}, false, err
	}
	return b, true, nil
}

func (s *Store) SetBroadcastStatus(ctx context.Context, id int64, status string, sentAt *time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE broadcasts SET status=$2, sent_at=COALESCE($3, sent_at) WHERE id=$1
	`, id, status, sentAt)
	return err
}

// ── Templates ────────────────────────────────────────────────

func (s *Store) GetTemplate(ctx context.Context, name string) (store.Template, bool, error) {
	var t store.Template
	row := s.DB.QueryRow(ctx, `
		SELECT name, category, body FROM templates WHERE name=$1
	`, name)
	err := row.Scan(&t.Name, &t.Category, &t.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Template{}, false, nil
		}
		return store.Template{}, false, err
	}
	return t, true, nil
}

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
