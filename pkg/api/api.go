// Package api exposes the store over a JSON HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/aretw0/scaledspace/pkg/core"
	"github.com/aretw0/scaledspace/pkg/store"
)

// Handler serves the /api routes.
type Handler struct {
	store  *store.Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the time source used for timestamps and validation.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithIDGenerator overrides how ids are generated for new records.
func WithIDGenerator(fn func() string) Option {
	return func(h *Handler) {
		h.newID = fn
	}
}

// WithLogger sets the logger for failed requests.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New creates a Handler over s.
func New(s *store.Store, opts ...Option) *Handler {
	h := &Handler{
		store: s,
		now:   time.Now,
		newID: NewID,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewID returns a time-ordered random identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Register mounts the API under /api on router.
func (h *Handler) Register(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", h.handleHealth).Methods("GET")

	api.HandleFunc("/notes", h.handleCreateNote).Methods("POST")
	api.HandleFunc("/notes", h.handleListNotes).Methods("GET")
	api.HandleFunc("/notes/{id}", h.handleGetNote).Methods("GET")
	api.HandleFunc("/notes/{id}", h.handleUpdateNote).Methods("PUT")
	api.HandleFunc("/notes/{id}", h.handleDeleteNote).Methods("DELETE")

	api.HandleFunc("/voicenotes", h.handleCreateVoiceNote).Methods("POST")
	api.HandleFunc("/voicenotes", h.handleListVoiceNotes).Methods("GET")
	api.HandleFunc("/voicenotes/{id}", h.handleGetVoiceNote).Methods("GET")
	api.HandleFunc("/voicenotes/{id}/audio", h.handleGetVoiceAudio).Methods("GET")
	api.HandleFunc("/voicenotes/{id}", h.handleUpdateVoiceNote).Methods("PUT")
	api.HandleFunc("/voicenotes/{id}", h.handleDeleteVoiceNote).Methods("DELETE")

	api.HandleFunc("/reminders", h.handleCreateReminder).Methods("POST")
	api.HandleFunc("/reminders", h.handleListReminders).Methods("GET")
	api.HandleFunc("/reminders/{id}", h.handleGetReminder).Methods("GET")
	api.HandleFunc("/reminders/{id}", h.handleUpdateReminder).Methods("PUT")
	api.HandleFunc("/reminders/{id}", h.handleDeleteReminder).Methods("DELETE")
}

// Routes returns a router with only the API mounted.
func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter()
	h.Register(router)
	return router
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"schemaVersion": store.SchemaVersion,
		"time":          h.now().Unix(),
	})
}

// fail maps a storage error to a status code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 && h.logger != nil {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, core.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, core.ErrInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
