package meta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
)

func newClient(baseURL string) *Client {
	return &Client{
		PhoneNumberID: "1029384756",
		AccessToken:   "token-123",
		APIVersion:    "v21.0",
		BaseURL:       baseURL,
		HTTP:          &http.Client{},
	}
}

func TestSendSubmitted(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.HBg"}]}`))
	}))
	defer ts.Close()

	out := newClient(ts.URL).Send(context.Background(), "+33 6 12 34 56 78", "salut")
	if out.Kind != provider.OutcomeSubmitted {
		t.Fatalf("kind = %v, reason = %q", out.Kind, out.Reason)
	}
	if out.ProviderMsgID != "wamid.HBg" {
		t.Fatalf("provider id = %q", out.ProviderMsgID)
	}
	if gotPath != "/v21.0/1029384756/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotPayload["to"] != "33612345678" {
		t.Fatalf("to = %v, want digits only", gotPayload["to"])
	}
	if gotPayload["messaging_product"] != "whatsapp" || gotPayload["type"] != "text" {
		t.Fatalf("payload = %v", gotPayload)
	}
	text, _ := gotPayload["text"].(map[string]any)
	if text["body"] != "salut" {
		t.Fatalf("text = %v", gotPayload["text"])
	}
}

func TestSendSubmittedWithoutMessages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer ts.Close()

	out := newClient(ts.URL).Send(context.Background(), "+1", "salut")
	if out.Kind != provider.OutcomeSubmitted || out.ProviderMsgID != "" {
		t.Fatalf("out = %+v", out)
	}
}

func TestSendRejectedUsesErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"(#131030) Recipient phone number not in allowed list","code":131030}}`))
	}))
	defer ts.Close()

	out := newClient(ts.URL).Send(context.Background(), "+1", "salut")
	if out.Kind != provider.OutcomeRejected {
		t.Fatalf("kind = %v", out.Kind)
	}
	if out.Reason != "(#131030) Recipient phone number not in allowed list" {
		t.Fatalf("reason = %q", out.Reason)
	}
}

func TestSendTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	out := newClient(ts.URL).Send(context.Background(), "+1", "salut")
	if out.Kind != provider.OutcomeTransportFailure || out.Reason == "" {
		t.Fatalf("out = %+v", out)
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := digitsOnly("+33 (0)6-12.34"); got != "33061234" {
		t.Fatalf("got %q", got)
	}
}
