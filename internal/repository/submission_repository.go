package repository

import (
	"context"
	"errors"

	"github.com/YouXam/ucloud-bot/internal/database"
	"github.com/YouXam/ucloud-bot/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrSubmissionActive is returned when starting a session while another one is active.
	ErrSubmissionActive = errors.New("submission repository: active session exists")
	// ErrVersionConflict is returned when a session was written by someone else since it was read.
	ErrVersionConflict = errors.New("submission repository: version conflict")
)

// GormSubmissionRepository is a GORM implementation of SubmissionRepository
type GormSubmissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository creates a new SubmissionRepository
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &GormSubmissionRepository{db: db}
}

// FindByUsername loads the session row for a username
func (r *GormSubmissionRepository) FindByUsername(ctx context.Context, username string) (*models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Scopes(database.ByUsername(username)).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// Start swaps out any finished session for a new active one in a transaction
func (r *GormSubmissionRepository) Start(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Submission
		err := tx.Scopes(database.ByUsername(submission.Username)).First(&existing).Error
		switch {
		case err == nil:
			if existing.Active {
				return ErrSubmissionActive
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		submission.ID = 0
		submission.Version = 1
		return tx.Create(submission).Error
	})
}

// Update writes the mutable fields back guarded by the version read earlier
func (r *GormSubmissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	next := submission.Version + 1
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("username = ? AND version = ?", submission.Username, submission.Version).
		Updates(map[string]interface{}{
			"active":       submission.Active,
			"content":      submission.Content,
			"attachments":  submission.Attachments,
			"message_id":   submission.MessageID,
			"channel_id":   submission.ChannelID,
			"reply_to":     submission.ReplyTo,
			"detail":       submission.Detail,
			"reply_markup": submission.ReplyMarkup,
			"version":      next,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	submission.Version = next
	return nil
}

// Delete removes the session row for a username
func (r *GormSubmissionRepository) Delete(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).
		Scopes(database.ByUsername(username)).
		Delete(&models.Submission{}).Error
}
