package handlers

import (
	"net/http"
	"time"

	"dinlipi/internal/models"
)

type EntryHandler struct {
	store EntryStore
}

func NewEntryHandler(store EntryStore) *EntryHandler {
	return &EntryHandler{store: store}
}

// List returns the caller's entries, newest first.
// Optional query params: year and month (together), limit, offset, q.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var f models.ListFilter
	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month")
	if !ok {
		return
	}
	if (year == 0) != (month == 0) || month > 12 {
		badRequest(w, "year and month must be given together; month is 1-12")
		return
	}
	f.Year, f.Month = year, time.Month(month)
	if f.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}
	f.Query = r.URL.Query().Get("q")

	entries, err := h.store.List(r.Context(), userID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.store.Create(r.Context(), userID, req.NewEntry, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *EntryHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	entry, err := h.store.GetByDate(r.Context(), userID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.store.GetByID(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req entryUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.store.Update(r.Context(), userID, id, req.update(), req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntryHandler) Tags(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	tags, err := h.store.ListTags(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// Calendar lists the days of a month that have entries. Defaults to the
// current UTC month.
func (h *EntryHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	today := models.Today()
	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month")
	if !ok {
		return
	}
	if year == 0 {
		year = today.Year()
	}
	if month == 0 {
		month = int(today.Month())
	}
	if month > 12 {
		badRequest(w, "month must be 1-12")
		return
	}
	dates, err := h.store.EntryDates(r.Context(), userID, year, time.Month(month))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{Year: year, Month: month, Dates: dates})
}
