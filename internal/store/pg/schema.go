package pg

// Schema creation is idempotent; EnsureSchema may run from any entry point.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id          BIGSERIAL PRIMARY KEY,
    phone       TEXT UNIQUE NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    subscribed  BOOLEAN NOT NULL DEFAULT TRUE,
    first_seen  TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS broadcasts (
    id          BIGSERIAL PRIMARY KEY,
    title       TEXT NOT NULL,
    message     TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'draft',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    sent_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS message_attempts (
    id            TEXT PRIMARY KEY,
    broadcast_id  BIGINT REFERENCES broadcasts(id),
    user_id       BIGINT REFERENCES users(id),
    phone         TEXT NOT NULL,
    direction     TEXT NOT NULL DEFAULT 'outbound',
    body          TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'queued',
    provider_sid  TEXT NOT NULL DEFAULT '',
    error         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

-- provider_sid is the reconciliation join key; unique whenever assigned.
CREATE UNIQUE INDEX IF NOT EXISTS message_attempts_provider_sid_key
    ON message_attempts (provider_sid) WHERE provider_sid <> '';

CREATE INDEX IF NOT EXISTS message_attempts_broadcast_idx
    ON message_attempts (broadcast_id);

CREATE TABLE IF NOT EXISTS templates (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT UNIQUE NOT NULL,
    category    TEXT NOT NULL DEFAULT 'general',
    body        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

var defaultTemplates = []struct {
	name, category, body string
}{
	{
		"welcome", "onboarding",
		"Bienvenue dans la communaute SoClose Society ! \U0001F680\n\n" +
			"Tape *aide* pour obtenir de l'aide.\n" +
			"Tape *stop* pour te desabonner.",
	},
	{
		"help", "info",
		"ℹ️ *Aide — SoClose Community Bot*\n\n" +
			"*aide* — Ce message\n" +
			"*stop* — Se desabonner\n" +
			"*start* — Se reabonner\n\n" +
			"\U0001F310 GitHub: github.com/SoCloseSociety\n" +
			"\U0001F310 Site: soclose.co",
	},
	{
		"broadcast_announcement", "broadcast",
		"\U0001F4E2 *Annonce SoClose Society*\n\n" +
			"{announcement_text}\n\n" +
			"\U0001F517 {link}\n\n" +
			"Tape *stop* pour te desabonner.",
	},
}
