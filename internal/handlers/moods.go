package handlers

import (
	"net/http"

	"dinlipi/internal/models"
)

type MoodHandler struct {
	store MoodStore
}

func NewMoodHandler(store MoodStore) *MoodHandler { return &MoodHandler{store: store} }

func (h *MoodHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	moods, err := h.store.ListMoodCatalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moods)
}

// List accepts optional start_date and end_date (YYYY-MM-DD, inclusive).
func (h *MoodHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	start, ok := optionalDate(w, r, "start_date")
	if !ok {
		return
	}
	end, ok := optionalDate(w, r, "end_date")
	if !ok {
		return
	}
	entries, err := h.store.GetMoodEntries(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *MoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in models.NewMoodEntry
	if !decodeJSON(w, r, &in) {
		return
	}
	m, err := h.store.CreateMoodEntry(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MoodHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	m, err := h.store.GetMoodEntryByDate(r.Context(), userID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Summary powers the mood dashboard.
// Accepts optional query param: local_date=YYYY-MM-DD to use as the user's "today".
func (h *MoodHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ref, ok := optionalDate(w, r, "local_date")
	if !ok {
		return
	}
	var day models.Date
	if ref != nil {
		day = *ref
	}
	sum, err := h.store.MoodSummary(r.Context(), userID, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
