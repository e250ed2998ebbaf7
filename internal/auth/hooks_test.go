package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dinlipi/internal/models"
)

type fakeCreator struct {
	created []models.NewProfile
	err     error
}

func (c *fakeCreator) Create(_ context.Context, in models.NewProfile) (*models.UserProfile, error) {
	c.created = append(c.created, in)
	if c.err != nil {
		return nil, c.err
	}
	return &models.UserProfile{UserID: in.UserID, Theme: in.Theme, FontSize: in.FontSize}, nil
}

func nopLogger() *zap.Logger { return zap.NewNop() }

func TestProfileOnSignUpIgnoresOtherEvents(t *testing.T) {
	creator := &fakeCreator{}
	hook := ProfileOnSignUp(creator, nopLogger())
	u := models.User{ID: uuid.New()}

	for _, k := range []EventKind{SignedIn, TokenRefreshed, SignedOut, UserUpdated, PasswordRecovery} {
		hook(context.Background(), Event{Kind: k, User: u})
	}
	assert.Empty(t, creator.created)

	name := "Karim"
	u.FullName = &name
	hook(context.Background(), Event{Kind: SignedUp, User: u})
	require.Len(t, creator.created, 1)
	got := creator.created[0]
	assert.Equal(t, "bn", got.PreferredLanguage)
	assert.Equal(t, "dark", got.Theme)
	assert.Equal(t, "medium", got.FontSize)
	assert.Equal(t, &name, got.FullName)
}

func TestProfileOnSignUpLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	creator := &fakeCreator{err: errors.New("insert failed")}
	hook := ProfileOnSignUp(creator, zap.New(core))

	hook(context.Background(), Event{Kind: SignedUp, User: models.User{ID: uuid.New()}})

	assert.Len(t, creator.created, 1, "no retry")
	entries := logs.FilterMessage("create profile on sign-up").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestHubOrderAndUnsubscribe(t *testing.T) {
	var h hub
	var calls []string
	unsubA := h.subscribe(func(context.Context, Event) { calls = append(calls, "a") })
	h.subscribe(func(context.Context, Event) { calls = append(calls, "b") })

	h.emit(context.Background(), Event{Kind: SignedIn})
	unsubA()
	unsubA()
	h.emit(context.Background(), Event{Kind: SignedOut})

	assert.Equal(t, []string{"a", "b", "b"}, calls)
}
