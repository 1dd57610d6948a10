package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/aretw0/scaledspace/pkg/core"
	"github.com/aretw0/scaledspace/pkg/store"
)

// maxAudioBytes bounds raw audio uploads.
const maxAudioBytes = 32 << 20

func (h *Handler) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var note store.Note
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(note.Title) == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if note.ID == "" {
		note.ID = h.newID()
	}
	if note.CreatedAt == 0 {
		note.CreatedAt = h.now().UnixMilli()
	}

	if err := h.store.Notes.Add(r.Context(), note); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	order, err := store.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var notes []store.Note
	if q := r.URL.Query().Get("q"); q != "" {
		notes, err = h.store.SearchNotes(r.Context(), q, order)
	} else {
		notes, err = h.store.ListNotes(r.Context(), order)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(notes))
}

func (h *Handler) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	note, found, err := h.store.Notes.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "Note not found")
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (h *Handler) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var note store.Note
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	note.ID = id

	err := h.store.Notes.Modify(r.Context(), id, func(old store.Note) (store.Note, error) {
		if note.CreatedAt == 0 {
			note.CreatedAt = old.CreatedAt
		}
		return note, nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (h *Handler) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Notes.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleCreateVoiceNote accepts either a JSON VoiceNote (blob base64) or a
// raw audio body with the title in the query string.
func (h *Handler) handleCreateVoiceNote(w http.ResponseWriter, r *http.Request) {
	var voice store.VoiceNote
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "audio/") {
		blob, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes+1))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid audio payload")
			return
		}
		if len(blob) > maxAudioBytes {
			respondError(w, http.StatusRequestEntityTooLarge, "Audio payload too large")
			return
		}
		voice = store.VoiceNote{
			Title:    r.URL.Query().Get("title"),
			Blob:     blob,
			MimeType: contentType,
		}
	} else if err := json.NewDecoder(r.Body).Decode(&voice); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if strings.TrimSpace(voice.Title) == "" {
		voice.Title = fmt.Sprintf("Voice note %s", h.now().Format("2006-01-02 15:04"))
	}
	if voice.ID == "" {
		voice.ID = h.newID()
	}
	if voice.CreatedAt == 0 {
		voice.CreatedAt = h.now().UnixMilli()
	}

	if err := h.store.VoiceNotes.Add(r.Context(), voice); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, voice)
}

func (h *Handler) handleListVoiceNotes(w http.ResponseWriter, r *http.Request) {
	var (
		voice []store.VoiceNote
		err   error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		voice, err = h.store.VoiceNotes.Search(r.Context(), q)
	} else {
		voice, err = h.store.ListVoiceNotes(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(voice))
}

func (h *Handler) handleGetVoiceNote(w http.ResponseWriter, r *http.Request) {
	voice, found, err := h.store.VoiceNotes.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "Voice note not found")
		return
	}
	respondJSON(w, http.StatusOK, voice)
}

func (h *Handler) handleGetVoiceAudio(w http.ResponseWriter, r *http.Request) {
	voice, found, err := h.store.VoiceNotes.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "Voice note not found")
		return
	}
	mime := voice.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(voice.Blob)
}

func (h *Handler) handleUpdateVoiceNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var updated store.VoiceNote
	err := h.store.VoiceNotes.Modify(r.Context(), id, func(v store.VoiceNote) (store.VoiceNote, error) {
		v.Title = patch.Title
		updated = v
		return v, nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteVoiceNote(w http.ResponseWriter, r *http.Request) {
	if err := h.store.VoiceNotes.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var reminder store.Reminder
	if err := json.NewDecoder(r.Body).Decode(&reminder); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(reminder.Title) == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	now := h.now().UnixMilli()
	if reminder.ScheduledAt <= now {
		respondError(w, http.StatusBadRequest, "Reminder must be scheduled in the future")
		return
	}
	if reminder.ID == "" {
		reminder.ID = h.newID()
	}
	if reminder.CreatedAt == 0 {
		reminder.CreatedAt = now
	}

	if err := h.store.Reminders.Add(r.Context(), reminder); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, reminder)
}

func (h *Handler) handleListReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UnixMilli()
	query := r.URL.Query()

	var (
		reminders []store.Reminder
		err       error
	)
	switch query.Get("when") {
	case "upcoming":
		reminders, err = h.store.UpcomingReminders(ctx, now)
	case "past":
		reminders, err = h.store.PastReminders(ctx, now)
	case "", "all":
		if q := query.Get("q"); q != "" {
			reminders, err = h.store.Reminders.Search(ctx, q)
		} else {
			reminders, err = h.store.Reminders.Scan(ctx, core.IndexRange{Index: store.IndexScheduledAt})
		}
	default:
		respondError(w, http.StatusBadRequest, "when must be upcoming, past or all")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(reminders))
}

func (h *Handler) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	reminder, found, err := h.store.Reminders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "Reminder not found")
		return
	}
	respondJSON(w, http.StatusOK, reminder)
}

func (h *Handler) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var reminder store.Reminder
	if err := json.NewDecoder(r.Body).Decode(&reminder); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	reminder.ID = id

	err := h.store.Reminders.Modify(r.Context(), id, func(old store.Reminder) (store.Reminder, error) {
		if reminder.CreatedAt == 0 {
			reminder.CreatedAt = old.CreatedAt
		}
		return reminder, nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reminder)
}

func (h *Handler) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reminders.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
