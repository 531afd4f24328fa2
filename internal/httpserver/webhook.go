package httpserver

import (
	"crypto/hmac"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/SoCloseSociety/WhatsappSender/internal/inbound"
	"github.com/SoCloseSociety/WhatsappSender/internal/provider"
	"github.com/SoCloseSociety/WhatsappSender/internal/reconcile"
	"github.com/SoCloseSociety/WhatsappSender/internal/util"
)

// Webhook hosts the provider callback surfaces. The Meta surface is guarded
// by the verify-token handshake; the Twilio surface is trusted implicitly
// once its URL is configured with the provider.
type Webhook struct {
	Reconciler  *reconcile.Reconciler
	Inbound     *inbound.Router
	VerifyToken string
}

func (wh *Webhook) Register(m *mux.Router) {
	m.HandleFunc("/webhook", wh.handleMetaVerify).Methods(http.MethodGet)
	m.HandleFunc("/webhook", wh.handleMetaEvents).Methods(http.MethodPost)
	m.HandleFunc("/twilio-webhook", wh.handleTwilioInbound).Methods(http.MethodPost)
	m.HandleFunc("/twilio-status", wh.handleTwilioStatus).Methods(http.MethodPost)
}

// handleMetaVerify answers Meta's challenge handshake. The token comparison
// is constant time; a mismatch gets a bare 403 and never the challenge.
func (wh *Webhook) handleMetaVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && wh.VerifyToken != "" && hmac.Equal([]byte(token), []byte(wh.VerifyToken)) {
		slog.Info("meta webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}

// Meta event envelope: entry[].changes[].value carries inbound messages
// and/or status updates in nested arrays.
type metaEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value metaValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type metaValue struct {
	Contacts []struct {
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []metaMessage `json:"messages"`
	Statuses []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"statuses"`
}

type metaMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type      string `json:"type"`
		ListReply struct {
			ID string `json:"id"`
		} `json:"list_reply"`
		ButtonReply struct {
			ID string `json:"id"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

func (m metaMessage) text() string {
	switch m.Type {
	case "text":
		return m.Text.Body
	case "interactive":
		switch m.Interactive.Type {
		case "list_reply":
			return m.Interactive.ListReply.ID
		case "button_reply":
			return m.Interactive.ButtonReply.ID
		}
	}
	return ""
}

func (wh *Webhook) handleMetaEvents(w http.ResponseWriter, r *http.Request) {
	var env metaEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		slog.Error("meta webhook json parse failed", "err", err)
		writeJSONStatus(w, "error")
		return
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			contactName := ""
			for _, c := range value.Contacts {
				contactName = c.Profile.Name
			}

			for _, msg := range value.Messages {
				phone := msg.From
				if phone != "" && !strings.HasPrefix(phone, "+") {
					phone = util.NormalizePhone(phone)
				}
				if text := msg.text(); text != "" && wh.Inbound != nil {
					wh.Inbound.Handle(r.Context(), phone, text, contactName)
				}
			}

			for _, st := range value.Statuses {
				if err := wh.Reconciler.Reconcile(r.Context(), provider.NameMeta, st.ID, st.Status); err != nil {
					slog.Error("meta status reconcile failed", "err", err, "provider_msg_id", st.ID)
					http.Error(w, ErrDependency, http.StatusInternalServerError)
					return
				}
			}
		}
	}
	writeJSONStatus(w, "ok")
}

func (wh *Webhook) handleTwilioInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrBadForm, http.StatusBadRequest)
		return
	}
	phone := strings.TrimPrefix(r.PostForm.Get("From"), "whatsapp:")
	text := r.PostForm.Get("Body")
	name := r.PostForm.Get("ProfileName")

	if phone != "" && text != "" && wh.Inbound != nil {
		wh.Inbound.Handle(r.Context(), phone, text, name)
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte("<Response></Response>"))
}

func (wh *Webhook) handleTwilioStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrBadForm, http.StatusBadRequest)
		return
	}
	sid := r.PostForm.Get("MessageSid")
	status := r.PostForm.Get("MessageStatus")

	if err := wh.Reconciler.Reconcile(r.Context(), provider.NameTwilio, sid, status); err != nil {
		slog.Error("twilio status reconcile failed", "err", err, "message_sid", sid, "status", status)
		http.Error(w, ErrDependency, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
