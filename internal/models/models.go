package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dinlipi/internal/errs"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash *string   `db:"password_hash" json:"-"` // nil for OAuth-only accounts
	FullName     *string   `db:"full_name" json:"full_name,omitempty"`
	Provider     string    `db:"provider" json:"provider"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Mood is an entry of the read-only mood catalog.
type Mood struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Name  string    `db:"name" json:"name"`
	Emoji string    `db:"emoji" json:"emoji"`
	Color string    `db:"color" json:"color"`
}

type DiaryEntry struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Title     string     `db:"title" json:"title"`
	Content   string     `db:"content" json:"content"` // Encrypted in DB
	Date      Date       `db:"date" json:"date"`
	MoodID    *uuid.UUID `db:"mood_id" json:"mood_id,omitempty"`
	PhotoURL  *string    `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// EntryView is a diary entry with its tag names flattened and its mood joined.
type EntryView struct {
	DiaryEntry
	Tags []string `json:"tags"`
	Mood *Mood    `json:"mood"`
}

type Tag struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type NewEntry struct {
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Date     Date       `json:"date"`
	MoodID   *uuid.UUID `json:"mood_id,omitempty"`
	PhotoURL *string    `json:"photo_url,omitempty"`
}

func (e NewEntry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errs.Invalid("title", "required")
	}
	if strings.TrimSpace(e.Content) == "" {
		return errs.Invalid("content", "required")
	}
	if e.Date.IsZero() {
		return errs.Invalid("date", "required")
	}
	return nil
}

// EntryUpdate carries the fields to change. A MoodID of uuid.Nil or an empty
// PhotoURL clears the column.
type EntryUpdate struct {
	Title    *string    `json:"title,omitempty"`
	Content  *string    `json:"content,omitempty"`
	Date     *Date      `json:"date,omitempty"`
	MoodID   *uuid.UUID `json:"mood_id,omitempty"`
	PhotoURL *string    `json:"photo_url,omitempty"`
}

func (u EntryUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return errs.Invalid("title", "must not be empty")
	}
	if u.Content != nil && strings.TrimSpace(*u.Content) == "" {
		return errs.Invalid("content", "must not be empty")
	}
	if u.Date != nil && u.Date.IsZero() {
		return errs.Invalid("date", "must not be empty")
	}
	return nil
}

// ListFilter narrows an entry listing. Year and Month apply only together.
type ListFilter struct {
	Year   int
	Month  time.Month
	Limit  int
	Offset int
	Query  string
}

type PracticeType string

const (
	PracticePhoto         PracticeType = "photo"
	PracticeDrawing       PracticeType = "drawing"
	PracticeWriting       PracticeType = "writing"
	PracticeMusic         PracticeType = "music"
	PracticeDailyCreation PracticeType = "daily_creation"
)

func (t PracticeType) Valid() bool {
	switch t {
	case PracticePhoto, PracticeDrawing, PracticeWriting, PracticeMusic, PracticeDailyCreation:
		return true
	}
	return false
}

type Practice struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	UserID    uuid.UUID    `db:"user_id" json:"user_id"`
	Type      PracticeType `db:"practice_type" json:"practice_type"`
	Title     string       `db:"title" json:"title"`
	Content   *string      `db:"content" json:"content,omitempty"`
	MediaURL  *string      `db:"media_url" json:"media_url,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

type NewPractice struct {
	Type     PracticeType `json:"practice_type"`
	Title    string       `json:"title"`
	Content  *string      `json:"content,omitempty"`
	MediaURL *string      `json:"media_url,omitempty"`
}

func (p NewPractice) Validate() error {
	if !p.Type.Valid() {
		return errs.Invalid("practice_type", "must be one of photo, drawing, writing, music, daily_creation")
	}
	if strings.TrimSpace(p.Title) == "" {
		return errs.Invalid("title", "required")
	}
	return nil
}

type PracticeUpdate struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	MediaURL *string `json:"media_url,omitempty"`
}

type PracticeEntry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	PracticeID  uuid.UUID  `db:"practice_id" json:"practice_id"`
	DayNumber   int        `db:"day_number" json:"day_number"`
	Content     string     `db:"content" json:"content"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type NewPracticeEntry struct {
	PracticeID uuid.UUID `json:"practice_id"`
	DayNumber  int       `json:"day_number"`
	Content    string    `json:"content"`
}

func (p NewPracticeEntry) Validate() error {
	if p.PracticeID == uuid.Nil {
		return errs.Invalid("practice_id", "required")
	}
	if p.DayNumber < 1 {
		return errs.Invalid("day_number", "must be at least 1")
	}
	return nil
}

type MoodEntry struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	UserID     uuid.UUID      `db:"user_id" json:"user_id"`
	Date       Date           `db:"date" json:"date"`
	MoodRating int            `db:"mood_rating" json:"mood_rating"`
	Emotions   pq.StringArray `db:"emotions" json:"emotions"`
	Notes      *string        `db:"notes" json:"notes,omitempty"` // Encrypted in DB
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

const (
	MinMoodRating = 1
	MaxMoodRating = 5
)

type NewMoodEntry struct {
	Date       Date     `json:"date"`
	MoodRating int      `json:"mood_rating"`
	Emotions   []string `json:"emotions"`
	Notes      *string  `json:"notes,omitempty"`
}

func (m NewMoodEntry) Validate() error {
	if m.Date.IsZero() {
		return errs.Invalid("date", "required")
	}
	if m.MoodRating < MinMoodRating || m.MoodRating > MaxMoodRating {
		return errs.Invalid("mood_rating", "must be between 1 and 5")
	}
	return nil
}

// TrendPoint is one day of a mood trend; Rating is 0 when nothing was logged.
type TrendPoint struct {
	Date   Date `db:"date" json:"date"`
	Rating int  `db:"rating" json:"rating"`
}

type MoodSummary struct {
	ReferenceDate      Date         `json:"reference_date"`
	HasTodayEntry      bool         `json:"has_today_entry"`
	EntriesThisWeek    int          `json:"entries_this_week"`
	EntriesThisMonth   int          `json:"entries_this_month"`
	AverageMonthRating float64      `json:"average_month_rating"`
	Distribution       map[int]int  `json:"distribution"`
	CurrentStreakDays  int          `json:"current_streak_days"`
	Last7DaysTrend     []TrendPoint `json:"last7_days_trend"`
}

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	FontSmall  = "small"
	FontMedium = "medium"
	FontLarge  = "large"

	DefaultLanguage = "bn"
	DefaultTheme    = ThemeDark
	DefaultFontSize = FontMedium
)

func ValidTheme(s string) bool { return s == ThemeLight || s == ThemeDark }

func ValidFontSize(s string) bool { return s == FontSmall || s == FontMedium || s == FontLarge }

type UserProfile struct {
	ID                uuid.UUID `db:"id" json:"id"`
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	FullName          *string   `db:"full_name" json:"full_name,omitempty"`
	PreferredLanguage string    `db:"preferred_language" json:"preferred_language"`
	Theme             string    `db:"theme" json:"theme"`
	FontSize          string    `db:"font_size" json:"font_size"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

type NewProfile struct {
	UserID            uuid.UUID `json:"user_id"`
	FullName          *string   `json:"full_name,omitempty"`
	PreferredLanguage string    `json:"preferred_language"`
	Theme             string    `json:"theme"`
	FontSize          string    `json:"font_size"`
}

// DefaultProfile is the profile created for a freshly signed up user.
func DefaultProfile(userID uuid.UUID, fullName *string) NewProfile {
	return NewProfile{
		UserID:            userID,
		FullName:          fullName,
		PreferredLanguage: DefaultLanguage,
		Theme:             DefaultTheme,
		FontSize:          DefaultFontSize,
	}
}

type ProfileUpdate struct {
	FullName          *string `json:"full_name,omitempty"`
	PreferredLanguage *string `json:"preferred_language,omitempty"`
	Theme             *string `json:"theme,omitempty"`
	FontSize          *string `json:"font_size,omitempty"`
}

func (u ProfileUpdate) Validate() error {
	if u.Theme != nil && !ValidTheme(*u.Theme) {
		return errs.Invalid("theme", "must be light or dark")
	}
	if u.FontSize != nil && !ValidFontSize(*u.FontSize) {
		return errs.Invalid("font_size", "must be small, medium or large")
	}
	if u.PreferredLanguage != nil && strings.TrimSpace(*u.PreferredLanguage) == "" {
		return errs.Invalid("preferred_language", "must not be empty")
	}
	return nil
}
