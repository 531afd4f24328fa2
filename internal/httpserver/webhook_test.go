package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SoCloseSociety/WhatsappSender/internal/domain"
	"github.com/SoCloseSociety/WhatsappSender/internal/inbound"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
	"github.com/SoCloseSociety/WhatsappSender/internal/reconcile"
	"github.com/SoCloseSociety/WhatsappSender/internal/store"
)

type fakeReconcileStore struct {
	mu       sync.Mutex
	statuses map[string]string
}

func (f *fakeReconcileStore) UpdateStatusByProviderSID(ctx context.Context, in store.StatusUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.statuses[in.ProviderSID]; !ok {
		return false, nil
	}
	f.statuses[in.ProviderSID] = in.Status
	return true, nil
}

type fakeInboundStore struct {
	mu           sync.Mutex
	users        map[string]bool // phone -> subscribed
	attempts     []store.AttemptInsert
	lastUpserted string
}

func (f *fakeInboundStore) UpsertUser(ctx context.Context, phone, name string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.users == nil {
		f.users = map[string]bool{}
	}
	if _, ok := f.users[phone]; !ok {
		f.users[phone] = true
	}
	f.lastUpserted = phone
	return 1, nil
}

func (f *fakeInboundStore) SetSubscribed(ctx context.Context, phone string, subscribed bool, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[phone] = subscribed
	return nil
}

func (f *fakeInboundStore) InsertAttempt(ctx context.Context, in store.AttemptInsert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, in)
	return nil
}

func (f *fakeInboundStore) GetTemplate(ctx context.Context, name string) (store.Template, bool, error) {
	return store.Template{}, false, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sends []string
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, to, body string) provider.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, to)
	return provider.Submitted("fake-1")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return strings.TrimSpace(string(b))
}

func newWebhookServer(t *testing.T, recStore *fakeReconcileStore, inbStore *fakeInboundStore) *httptest.Server {
	t.Helper()
	wh := &Webhook{
		Reconciler: &reconcile.Reconciler{Store: recStore},
		Inbound: &inbound.Router{
			Store:  inbStore,
			Sender: &fakeSender{},
		},
		VerifyToken: "tok-123",
	}
	s := New()
	wh.Register(s.Mux)
	ts := httptest.NewServer(s.Mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestMetaVerifyEchoesChallenge(t *testing.T) {
	ts := newWebhookServer(t, &fakeReconcileStore{statuses: map[string]string{}}, &fakeInboundStore{})

	resp, err := http.Get(ts.URL + "/webhook?hub.mode=subscribe&hub.verify_token=tok-123&hub.challenge=challenge-42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	if body != "challenge-42" {
		t.Fatalf("body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestMetaVerifyRejectsBadToken(t *testing.T) {
	ts := newWebhookServer(t, &fakeReconcileStore{statuses: map[string]string{}}, &fakeInboundStore{})

	resp, err := http.Get(ts.URL + "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if body := readBody(t, resp); strings.Contains(body, "challenge-42") {
		t.Fatal("challenge echoed to unverified caller")
	}
}

func TestMetaVerifyRejectsWrongMode(t *testing.T) {
	ts := newWebhookServer(t, &fakeReconcileStore{statuses: map[string]string{}}, &fakeInboundStore{})

	resp, err := http.Get(ts.URL + "/webhook?hub.mode=unsubscribe&hub.verify_token=tok-123&hub.challenge=c")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestMetaStatusCallbackReconciles(t *testing.T) {
	recStore := &fakeReconcileStore{statuses: map[string]string{"wamid.77": string(domain.StatusSent)}}
	ts := newWebhookServer(t, recStore, &fakeInboundStore{})

	payload := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.77","status":"delivered"}]}}]}]}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := recStore.statuses["wamid.77"]; got != string(domain.StatusDelivered) {
		t.Fatalf("stored status = %q", got)
	}
}

func TestMetaInboundMessageRouted(t *testing.T) {
	inbStore := &fakeInboundStore{}
	ts := newWebhookServer(t, &fakeReconcileStore{statuses: map[string]string{}}, inbStore)

	payload := `{"entry":[{"changes":[{"value":{
		"contacts":[{"profile":{"name":"Ada"}}],
		"messages":[{"from":"33612345678","type":"text","text":{"body":"stop"}}]
	}}]}]}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if sub, ok := inbStore.users["+33612345678"]; !ok || sub {
		t.Fatalf("stop keyword did not unsubscribe: %v", inbStore.users)
	}
}

func TestMetaInteractiveReplyRouted(t *testing.T) {
	inbStore := &fakeInboundStore{}
	ts := newWebhookServer(t, &fakeReconcileStore{statuses: map[string]string{}}, inbStore)

	payload := `{"entry":[{"changes":[{"value":{
		"messages":[{"from":"33612345678","type":"interactive",
			"interactive":{"type":"list_reply","list_reply":{"id":"help"}}}]
	}}]}]}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if inbStore.lastUpserted != "+33612345678" {
		t.Fatalf("interactive reply not routed, upserted %q", inbStore.lastUpserted)
	}
}

func TestTwilioStatusCallbackReconciles(t *testing.T) {
	recStore := &fakeReconcileStore{statuses: map[string]string{"SM55": string(domain.StatusSent)}}
	ts := newWebhookServer(t, recStore, &fakeInboundStore{})

	form := url.Values{"MessageSid": {"SM55"}, "MessageStatus": {"undelivered"}}
	resp, err := http.PostForm(ts.URL+"/twilio-status", form)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := recStore.statuses["SM55"]; got != string(domain.StatusFailed) {
		t.Fatalf("stored status = %q, want failed", got)
	}
	if body := readBody(t, resp); !strings.Contains(body, `"ok"`) {
		t.Fatalf("body = %q", body)
	}
}

func TestTwilioStatusUnknownIDReturnsOK(t *testing.T) {
	recStore := &fakeReconcileStore{statuses: map[string]string{}}
	ts := newWebhookServer(t, recStore, &fakeInboundStore{})

	form := url.Values{"MessageSid": {"SM404"}, "MessageStatus": {"delivered"}}
	resp, err := http.PostForm(ts.URL+"/twilio-status", form)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	// providers retry on non-2xx; an untracked id must not look like a failure
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(recStore.statuses) != 0 {
		t.Fatalf("unknown id mutated state: %v", recStore.statuses)
	}
}

func TestTwilioInboundRepliesWithTwiML(t *testing.T) {
	inbStore := &fakeInboundStore{}
	ts := newWebhookServer(t, &fakeReconcileStore{statuses: map[string]string{}}, inbStore)

	form := url.Values{
		"From":        {"whatsapp:+33612345678"},
		"Body":        {"stop"},
		"ProfileName": {"Ada"},
	}
	resp, err := http.PostForm(ts.URL+"/twilio-webhook", form)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "<Response></Response>" {
		t.Fatalf("body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("content type = %q", ct)
	}
	if sub := inbStore.users["+33612345678"]; sub {
		t.Fatal("stop keyword did not unsubscribe")
	}
}
