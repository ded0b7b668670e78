package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	alerting "quake-pager/internal/alerting/domain"
	"quake-pager/internal/audit"
	"quake-pager/internal/auth"
	"quake-pager/internal/eventing"
)

// SubscriberStore persists alert subscribers.
type SubscriberStore interface {
	Get(ctx context.Context, id string) (*alerting.Subscriber, error)
	List(ctx context.Context) ([]alerting.Subscriber, error)
	Save(ctx context.Context, subscriber *alerting.Subscriber) error
	Delete(ctx context.Context, id string) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SubscribersHandler serves subscriber CRUD under /api/v1/subscribers.
type SubscribersHandler struct {
	store       SubscriberStore
	auditLogger audit.Logger
	clock       Clock
}

// NewSubscribersHandler constructs a SubscribersHandler.
func NewSubscribersHandler(store SubscriberStore, auditLogger audit.Logger) (*SubscribersHandler, error) {
	if store == nil {
		return nil, errors.New("alerting handler: nil store")
	}
	return &SubscribersHandler{store: store, auditLogger: auditLogger, clock: systemClock{}}, nil
}

type subscriberPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Format    string    `json:"format"`
	Rule      string    `json:"rule"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ServeHTTP routes subscriber requests.
func (h *SubscribersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/subscribers" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api/v1/subscribers/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/subscribers/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, id)
	case http.MethodPut:
		h.handleUpdate(w, r, id)
	case http.MethodDelete:
		h.handleDelete(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *SubscribersHandler) handleList(w http.ResponseWriter, r *http.Request) {
	subscribers, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, "query subscribers error", http.StatusInternalServerError)
		return
	}
	payload := make([]subscriberPayload, 0, len(subscribers))
	for i := range subscribers {
		payload = append(payload, toPayload(&subscribers[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *SubscribersHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	subscriber, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondSubscriberError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPayload(subscriber))
}

func (h *SubscribersHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req subscriberPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = eventing.NewEventID()
	}
	now := h.clock.Now().UTC()
	subscriber := &alerting.Subscriber{
		ID:        req.ID,
		Name:      req.Name,
		Address:   req.Address,
		Format:    req.Format,
		RuleText:  req.Rule,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := subscriber.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Save(r.Context(), subscriber); err != nil {
		http.Error(w, "save subscriber error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toPayload(subscriber))
	h.logAudit(r, subscriber.ID, "subscriber.create", map[string]any{"rule": subscriber.RuleText})
}

func (h *SubscribersHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondSubscriberError(w, err)
		return
	}
	var req subscriberPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	subscriber := &alerting.Subscriber{
		ID:        id,
		Name:      req.Name,
		Address:   req.Address,
		Format:    req.Format,
		RuleText:  req.Rule,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: h.clock.Now().UTC(),
	}
	if err := subscriber.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Save(r.Context(), subscriber); err != nil {
		http.Error(w, "save subscriber error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPayload(subscriber))
	h.logAudit(r, id, "subscriber.update", map[string]any{"rule": subscriber.RuleText})
}

func (h *SubscribersHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		respondSubscriberError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id, "subscriber.delete", nil)
}

func (h *SubscribersHandler) logAudit(r *http.Request, id, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var payload json.RawMessage
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "subscriber",
		ResourceID:   id,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func toPayload(subscriber *alerting.Subscriber) subscriberPayload {
	return subscriberPayload{
		ID:        subscriber.ID,
		Name:      subscriber.Name,
		Address:   subscriber.Address,
		Format:    subscriber.Format,
		Rule:      subscriber.RuleText,
		CreatedAt: subscriber.CreatedAt,
		UpdatedAt: subscriber.UpdatedAt,
	}
}

func respondSubscriberError(w http.ResponseWriter, err error) {
	if errors.Is(err, alerting.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "subscriber store error", http.StatusInternalServerError)
}
