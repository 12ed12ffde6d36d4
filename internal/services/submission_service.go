package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/gorm"

	"github.com/YouXam/ucloud-bot/internal/constants"
	"github.com/YouXam/ucloud-bot/internal/dto"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/repository"
)

var (
	ErrSessionActive      = errors.New("a submission is already in progress")
	ErrNoSession          = errors.New("no submission in progress")
	ErrEmptySubmission    = errors.New("send content or attachments first")
	ErrUploadInProgress   = errors.New("wait for uploads to finish")
	ErrAttachmentNotFound = errors.New("attachment no longer exists")
	ErrSessionBusy        = errors.New("submission was modified concurrently, try again")

	errSessionReplaced = errors.New("session replaced")
)

// SubmissionService drives the per-user submission workflow. All state lives
// in the submission row; every event is load, compute, conditional save.
type SubmissionService struct {
	users    repository.UserRepository
	sessions repository.SubmissionRepository
	backend  Backend
	chat     Messenger

	uploads sync.WaitGroup
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(users repository.UserRepository, sessions repository.SubmissionRepository, backend Backend, chat Messenger) *SubmissionService {
	return &SubmissionService{
		users:    users,
		sessions: sessions,
		backend:  backend,
		chat:     chat,
	}
}

// EnterInput describes a press of an assignment card's submit button.
type EnterInput struct {
	UserID        int64
	ChatID        int64
	CardMessageID int
	CardKeyboard  models.Keyboard
	AssignmentID  string
}

// FileInput describes a document or photo sent while a session may be open.
type FileInput struct {
	UserID   int64
	FileID   string
	Filename string
	MimeType string
	Caption  string
}

// Wait blocks until every background upload has finished.
func (s *SubmissionService) Wait() {
	s.uploads.Wait()
}

// Enter opens a session for an assignment and posts the workflow message.
func (s *SubmissionService) Enter(ctx context.Context, in EnterInput) (*models.Submission, error) {
	user, err := findUser(ctx, s.users, in.UserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.FindByUsername(ctx, user.Username)
	switch {
	case err == nil && existing.Active:
		return nil, ErrSessionActive
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	detail, err := s.backend.Homework(ctx, credentials(user), in.AssignmentID)
	if err != nil {
		return nil, backendError("fetch assignment", err)
	}

	sub := &models.Submission{
		Username:     user.Username,
		SessionKey:   uuid.NewString(),
		AssignmentID: in.AssignmentID,
		Active:       true,
		Attachments:  models.Attachments{},
		ChannelID:    in.ChatID,
		ReplyTo:      in.CardMessageID,
		Detail: models.AssignmentSnapshot{
			Title:   detail.AssignmentTitle,
			Course:  detail.CourseLabel(),
			EndTime: detail.AssignmentEndTime,
		},
		ReplyMarkup: in.CardKeyboard.Clone(),
	}
	if err := s.sessions.Start(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrSubmissionActive) {
			return nil, ErrSessionActive
		}
		return nil, fmt.Errorf("failed to start submission: %w", err)
	}

	text, kb := renderWorkflow(sub, stateCollecting)
	messageID, err := s.chat.SendMessage(ctx, in.ChatID, text, in.CardMessageID, kb)
	if err != nil {
		if delErr := s.sessions.Delete(ctx, user.Username); delErr != nil {
			jww.ERROR.Printf("Failed to roll back submission for %s: %v", user.Username, delErr)
		}
		return nil, fmt.Errorf("failed to post workflow message: %w", err)
	}

	sub, err = s.mutate(ctx, user.Username, sub.SessionKey, func(cur *models.Submission) error {
		cur.MessageID = messageID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.CardMessageID != 0 && len(in.CardKeyboard) > 0 {
		kb := cardWhileSubmitting(in.CardKeyboard, in.AssignmentID)
		if err := s.chat.EditKeyboard(ctx, in.ChatID, in.CardMessageID, kb); err != nil {
			jww.WARN.Printf("Failed to disable submit button for %s: %v", user.Username, err)
		}
	}

	jww.INFO.Printf("Submission for %s opened by %s", in.AssignmentID, user.Username)
	return sub, nil
}

// AppendText adds a chunk of text to the open session.
func (s *SubmissionService) AppendText(ctx context.Context, userID int64, text string) (*models.Submission, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.mutate(ctx, user.Username, "", func(cur *models.Submission) error {
		cur.AppendContent(text)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refresh(ctx, sub)
	return sub, nil
}

// AddFile registers a file with the open session and uploads it in the
// background. A file id already present is never uploaded again; while its
// upload is in flight only its name and type are updated.
func (s *SubmissionService) AddFile(ctx context.Context, in FileInput) (*models.Submission, error) {
	user, err := findUser(ctx, s.users, in.UserID)
	if err != nil {
		return nil, err
	}

	var needsUpload bool
	sub, err := s.mutate(ctx, user.Username, "", func(cur *models.Submission) error {
		needsUpload = true
		if in.Caption != "" {
			cur.AppendContent(in.Caption)
		}

		idx := cur.Attachments.IndexOfFile(in.FileID)
		if idx < 0 {
			cur.Attachments = append(cur.Attachments, models.Attachment{
				Filename:  in.Filename,
				MimeType:  in.MimeType,
				Uploading: true,
				FileID:    in.FileID,
			})
			return nil
		}

		// the upload in flight merges by file id; a finished one stays as is
		needsUpload = false
		if att := &cur.Attachments[idx]; att.Uploading {
			att.Filename = in.Filename
			att.MimeType = in.MimeType
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refresh(ctx, sub)

	if needsUpload {
		pending := models.Attachment{
			Filename: in.Filename,
			MimeType: in.MimeType,
			FileID:   in.FileID,
		}
		s.uploads.Add(1)
		go s.upload(context.WithoutCancel(ctx), *user, sub.SessionKey, pending)
	}
	return sub, nil
}

// upload ingests one file and merges the result into the session it was
// started for. The merge matches by file id so concurrent deletions and
// reorders are tolerated; a failed upload drops the pending entry.
func (s *SubmissionService) upload(ctx context.Context, user models.User, sessionKey string, att models.Attachment) {
	defer s.uploads.Done()

	result, uploadErr := s.ingest(ctx, &user, att)
	if uploadErr != nil {
		jww.WARN.Printf("Upload of %s for %s failed: %v", att.Filename, user.Username, uploadErr)
	}

	sub, err := s.mutate(ctx, user.Username, sessionKey, func(cur *models.Submission) error {
		idx := cur.Attachments.IndexOfFile(att.FileID)

		if uploadErr != nil {
			if idx >= 0 && cur.Attachments[idx].Uploading {
				cur.Attachments = append(cur.Attachments[:idx], cur.Attachments[idx+1:]...)
			}
			return nil
		}

		if idx < 0 {
			cur.Attachments = append(cur.Attachments, att)
			idx = len(cur.Attachments) - 1
		}
		done := &cur.Attachments[idx]
		done.ResourceID = result.ResourceID
		done.URL = result.PreviewURL
		done.Uploading = false
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoSession) || errors.Is(err, errSessionReplaced) {
			jww.INFO.Printf("Dropping upload of %s: session for %s has ended", att.Filename, user.Username)
			return
		}
		jww.ERROR.Printf("Failed to record upload of %s for %s: %v", att.Filename, user.Username, err)
		return
	}

	s.refresh(ctx, sub)

	if uploadErr != nil {
		text := fmt.Sprintf("Failed to upload %s, please send it again.", att.Filename)
		if _, err := s.chat.SendMessage(ctx, sub.ChannelID, text, sub.MessageID, nil); err != nil {
			jww.WARN.Printf("Failed to report upload failure to %s: %v", user.Username, err)
		}
	}
}

func (s *SubmissionService) ingest(ctx context.Context, user *models.User, att models.Attachment) (*dto.UploadResult, error) {
	fileURL, err := s.chat.FileURL(ctx, att.FileID)
	if err != nil {
		return nil, err
	}
	return s.backend.Upload(ctx, credentials(user), dto.UploadRequest{
		URL:      fileURL,
		Filename: att.Filename,
		MimeType: att.MimeType,
	})
}

// RemoveAttachment drops the attachment at a zero-based position.
func (s *SubmissionService) RemoveAttachment(ctx context.Context, userID int64, index int) (*models.Submission, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.mutate(ctx, user.Username, "", func(cur *models.Submission) error {
		if index < 0 || index >= len(cur.Attachments) {
			return ErrAttachmentNotFound
		}
		cur.Attachments = append(cur.Attachments[:index], cur.Attachments[index+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refresh(ctx, sub)
	return sub, nil
}

// ClearAttachments drops every attachment.
func (s *SubmissionService) ClearAttachments(ctx context.Context, userID int64) (*models.Submission, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.mutate(ctx, user.Username, "", func(cur *models.Submission) error {
		cur.Attachments = models.Attachments{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refresh(ctx, sub)
	return sub, nil
}

// Finalize submits the open session. On failure the session stays active so
// the user can retry.
func (s *SubmissionService) Finalize(ctx context.Context, userID int64) (*models.Submission, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.loadActive(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if !sub.HasPayload() {
		return nil, ErrEmptySubmission
	}
	if sub.Attachments.AnyUploading() {
		return nil, ErrUploadInProgress
	}

	s.render(ctx, sub, stateSubmitting)

	err = s.backend.Submit(ctx, credentials(user), dto.SubmitRequest{
		AssignmentID:      sub.AssignmentID,
		AssignmentContent: sub.Content,
		AttachmentIDs:     sub.Attachments.ResourceIDs(),
	})
	if err != nil {
		s.render(ctx, sub, stateCollecting)
		return nil, backendError("submit", err)
	}

	done, err := s.mutate(ctx, user.Username, sub.SessionKey, func(cur *models.Submission) error {
		cur.Active = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.render(ctx, done, stateSubmitted)
	if done.ReplyTo != 0 && len(done.ReplyMarkup) > 0 {
		kb := cardAfterSubmit(done.ReplyMarkup, done.AssignmentID)
		if err := s.chat.EditKeyboard(ctx, done.ChannelID, done.ReplyTo, kb); err != nil {
			jww.WARN.Printf("Failed to restore submit button for %s: %v", user.Username, err)
		}
	}

	jww.INFO.Printf("Submission for %s finalized by %s with %d attachments", done.AssignmentID, user.Username, len(done.Attachments))
	return done, nil
}

// Cancel discards the open session and restores the card's buttons.
func (s *SubmissionService) Cancel(ctx context.Context, userID int64) error {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return err
	}

	sub, err := s.loadActive(ctx, user.Username)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, user.Username); err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}

	s.render(ctx, sub, stateCancelled)
	if sub.ReplyTo != 0 && len(sub.ReplyMarkup) > 0 {
		if err := s.chat.EditKeyboard(ctx, sub.ChannelID, sub.ReplyTo, sub.ReplyMarkup); err != nil {
			jww.WARN.Printf("Failed to restore card buttons for %s: %v", user.Username, err)
		}
	}

	jww.INFO.Printf("Submission for %s cancelled by %s", sub.AssignmentID, user.Username)
	return nil
}

func (s *SubmissionService) loadActive(ctx context.Context, username string) (*models.Submission, error) {
	sub, err := s.sessions.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if !sub.Active {
		return nil, ErrNoSession
	}
	return sub, nil
}

// mutate applies fn to a fresh copy of the active session and writes it back
// guarded by its version, re-reading on conflict. A non-empty sessionKey pins
// the write to one session lifetime. fn may run more than once.
func (s *SubmissionService) mutate(ctx context.Context, username, sessionKey string, fn func(*models.Submission) error) (*models.Submission, error) {
	for attempt := 1; attempt <= constants.MaxSessionWriteAttempts; attempt++ {
		sub, err := s.loadActive(ctx, username)
		if err != nil {
			return nil, err
		}
		if sessionKey != "" && sub.SessionKey != sessionKey {
			return nil, errSessionReplaced
		}
		if err := fn(sub); err != nil {
			return nil, err
		}

		err = s.sessions.Update(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to save submission: %w", err)
		}
		jww.DEBUG.Printf("Submission for %s changed underneath us, retrying (%d/%d)", username, attempt, constants.MaxSessionWriteAttempts)
	}
	return nil, ErrSessionBusy
}

// refresh redraws the workflow message for a collecting session.
func (s *SubmissionService) refresh(ctx context.Context, sub *models.Submission) {
	s.render(ctx, sub, stateCollecting)
}

func (s *SubmissionService) render(ctx context.Context, sub *models.Submission, state workflowState) {
	if sub.MessageID == 0 {
		return
	}
	text, kb := renderWorkflow(sub, state)
	if err := s.chat.EditMessage(ctx, sub.ChannelID, sub.MessageID, text, kb); err != nil {
		jww.WARN.Printf("Failed to redraw workflow message for %s: %v", sub.Username, err)
	}
}
