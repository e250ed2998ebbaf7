package handlers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"dinlipi/internal/models"
)

type sessionResponse struct {
	User      models.User `json:"user"`
	SessionID uuid.UUID   `json:"session_id"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// entryRequest is the create body: the entry fields plus tag names.
type entryRequest struct {
	models.NewEntry
	Tags []string `json:"tags"`
}

// nullableUUID tells an absent field apart from an explicit null.
type nullableUUID struct {
	set bool
	id  uuid.UUID
}

func (n *nullableUUID) UnmarshalJSON(b []byte) error {
	n.set = true
	if string(b) == "null" {
		n.id = uuid.Nil
		return nil
	}
	return json.Unmarshal(b, &n.id)
}

// entryUpdateRequest is the partial update body. "mood_id": null clears the
// mood, "photo_url": "" clears the photo, and a present "tags" array replaces
// every tag.
type entryUpdateRequest struct {
	Title    *string      `json:"title"`
	Content  *string      `json:"content"`
	Date     *models.Date `json:"date"`
	MoodID   nullableUUID `json:"mood_id"`
	PhotoURL *string      `json:"photo_url"`
	Tags     *[]string    `json:"tags"`
}

func (req entryUpdateRequest) update() models.EntryUpdate {
	upd := models.EntryUpdate{
		Title:    req.Title,
		Content:  req.Content,
		Date:     req.Date,
		PhotoURL: req.PhotoURL,
	}
	if req.MoodID.set {
		id := req.MoodID.id
		upd.MoodID = &id
	}
	return upd
}

type calendarResponse struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Dates []models.Date `json:"dates"`
}
