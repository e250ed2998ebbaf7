package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dinlipi/internal/auth"
	"dinlipi/internal/models"
)

type EntryStore interface {
	Create(ctx context.Context, userID uuid.UUID, in models.NewEntry, tags []string) (*models.EntryView, error)
	List(ctx context.Context, userID uuid.UUID, f models.ListFilter) ([]models.EntryView, error)
	GetByDate(ctx context.Context, userID uuid.UUID, date models.Date) (*models.EntryView, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.EntryView, error)
	Update(ctx context.Context, userID, id uuid.UUID, upd models.EntryUpdate, tags *[]string) (*models.EntryView, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListTags(ctx context.Context, userID uuid.UUID) ([]models.Tag, error)
	EntryDates(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]models.Date, error)
}

type PracticeStore interface {
	CreatePractice(ctx context.Context, userID uuid.UUID, in models.NewPractice) (*models.Practice, error)
	GetPractice(ctx context.Context, userID, id uuid.UUID) (*models.Practice, error)
	ListPractices(ctx context.Context, userID uuid.UUID, practiceType *models.PracticeType) ([]models.Practice, error)
	UpdatePractice(ctx context.Context, userID, id uuid.UUID, upd models.PracticeUpdate) (*models.Practice, error)
	DeletePractice(ctx context.Context, userID, id uuid.UUID) error
	CreatePracticeEntry(ctx context.Context, userID uuid.UUID, in models.NewPracticeEntry) (*models.PracticeEntry, error)
	CompletePracticeEntry(ctx context.Context, userID, id uuid.UUID) (*models.PracticeEntry, error)
	ListPracticeEntries(ctx context.Context, userID, practiceID uuid.UUID) ([]models.PracticeEntry, error)
}

type MoodStore interface {
	ListMoodCatalog(ctx context.Context) ([]models.Mood, error)
	CreateMoodEntry(ctx context.Context, userID uuid.UUID, in models.NewMoodEntry) (*models.MoodEntry, error)
	GetMoodEntries(ctx context.Context, userID uuid.UUID, start, end *models.Date) ([]models.MoodEntry, error)
	GetMoodEntryByDate(ctx context.Context, userID uuid.UUID, date models.Date) (*models.MoodEntry, error)
	MoodSummary(ctx context.Context, userID uuid.UUID, ref models.Date) (*models.MoodSummary, error)
}

type ProfileStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	Update(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.UserProfile, error)
}

type AuthService interface {
	SignUp(ctx context.Context, email, password string, fullName *string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	SignOut(ctx context.Context, claims *auth.Claims, scope auth.Scope) error
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) (*auth.Session, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, password string) error
	User(ctx context.Context, userID uuid.UUID) (*models.User, error)
	OAuthURL(provider, redirectTo string) (string, error)
	CompleteOAuth(ctx context.Context, provider, code, state string) (*auth.Session, string, error)
}
