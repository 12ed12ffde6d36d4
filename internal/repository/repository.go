package repository

import (
	"context"

	"github.com/YouXam/ucloud-bot/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Upsert creates the user or overwrites credentials, push flag and tier map
	Upsert(ctx context.Context, user *models.User) error

	// FindByID finds a user by chat user id
	FindByID(ctx context.Context, id int64) (*models.User, error)

	// ListPushEnabled lists every user that receives reminders
	ListPushEnabled(ctx context.Context) ([]models.User, error)

	// SetPush turns reminders on or off
	SetPush(ctx context.Context, id int64, push bool) error

	// SaveTierMap replaces the stored tier map
	SaveTierMap(ctx context.Context, id int64, tiers models.TierMap) error
}

// SubmissionRepository defines the interface for submission session access.
// Rows are unique per username.
type SubmissionRepository interface {
	// FindByUsername loads the session row for a username
	FindByUsername(ctx context.Context, username string) (*models.Submission, error)

	// Start replaces any inactive row with a new active session. It fails with
	// ErrSubmissionActive when an active session already exists.
	Start(ctx context.Context, submission *models.Submission) error

	// Update writes the session back if nobody else wrote it since it was read,
	// and bumps its version. It fails with ErrVersionConflict otherwise.
	Update(ctx context.Context, submission *models.Submission) error

	// Delete removes the session row for a username
	Delete(ctx context.Context, username string) error
}
