package handlers

import (
	"net/http"

	"dinlipi/internal/models"
)

type PracticeHandler struct {
	store PracticeStore
}

func NewPracticeHandler(store PracticeStore) *PracticeHandler {
	return &PracticeHandler{store: store}
}

// List accepts an optional ?type= filter.
func (h *PracticeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var kind *models.PracticeType
	if t := r.URL.Query().Get("type"); t != "" {
		pt := models.PracticeType(t)
		kind = &pt
	}
	out, err := h.store.ListPractices(r.Context(), userID, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PracticeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in models.NewPractice
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.store.CreatePractice(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PracticeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.GetPractice(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PracticeHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var upd models.PracticeUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	p, err := h.store.UpdatePractice(r.Context(), userID, id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete answers 409 while the practice still has recorded days.
func (h *PracticeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeletePractice(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PracticeHandler) Entries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	out, err := h.store.ListPracticeEntries(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PracticeHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		DayNumber int    `json:"day_number"`
		Content   string `json:"content"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	e, err := h.store.CreatePracticeEntry(r.Context(), userID, models.NewPracticeEntry{
		PracticeID: id,
		DayNumber:  body.DayNumber,
		Content:    body.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *PracticeHandler) CompleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	e, err := h.store.CompletePracticeEntry(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
