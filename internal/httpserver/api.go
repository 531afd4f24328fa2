package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/SoCloseSociety/WhatsappSender/internal/service"
)

type API struct {
	Svc *service.BroadcastService
}

func (a *API) Register(m *mux.Router) {
	m.HandleFunc("/v1/broadcasts", a.handleCreate).Methods(http.MethodPost)
	m.HandleFunc("/v1/broadcasts/{id}", a.handleGet).Methods(http.MethodGet)
	m.HandleFunc("/v1/broadcasts/{id}/dispatch", a.handleDispatch).Methods(http.MethodPost)
}

type createBroadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	id, err := a.Svc.Create(r.Context(), req.Title, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrMissingFields) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("create broadcast failed", "err", err, "title", req.Title)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := broadcastID(w, r)
	if !ok {
		return
	}
	b, stats, err := a.Svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Error(w, ErrNotFound, http.StatusNotFound)
			return
		}
		slog.Error("get broadcast failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":        b.ID,
		"title":     b.Title,
		"status":    b.Status,
		"createdAt": b.CreatedAt,
		"sentAt":    b.SentAt,
		"stats":     stats,
	})
}

func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	id, ok := broadcastID(w, r)
	if !ok {
		return
	}
	res, err := a.Svc.Run(r.Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	case errors.Is(err, service.ErrAlreadySent), errors.Is(err, service.ErrNoRecipients):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// partial run; everything submitted so far is recorded
		slog.Warn("broadcast dispatch cancelled", "id", id, "sent", res.Sent, "failed", res.Failed)
	case err != nil:
		slog.Error("broadcast dispatch failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func broadcastID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
