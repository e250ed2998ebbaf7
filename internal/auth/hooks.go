package auth

import (
	"context"

	"go.uber.org/zap"

	"dinlipi/internal/models"
)

// ProfileCreator is satisfied by *repository.ProfileRepository.
type ProfileCreator interface {
	Create(ctx context.Context, in models.NewProfile) (*models.UserProfile, error)
}

// ProfileOnSignUp creates the default profile when a user signs up. Other
// events are ignored. A failed insert is logged and not retried; the user can
// still sign in without a profile.
func ProfileOnSignUp(creator ProfileCreator, logger *zap.Logger) Listener {
	return func(ctx context.Context, e Event) {
		if e.Kind != SignedUp {
			return
		}
		if _, err := creator.Create(ctx, models.DefaultProfile(e.User.ID, e.User.FullName)); err != nil {
			logger.Error("create profile on sign-up",
				zap.String("user_id", e.User.ID.String()),
				zap.Error(err))
		}
	}
}
