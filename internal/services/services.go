package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/YouXam/ucloud-bot/internal/dto"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/repository"
	"github.com/YouXam/ucloud-bot/internal/upstream"
	"gorm.io/gorm"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginExpired       = errors.New("stored credentials were rejected")
)

// Messenger is the chat side the services talk to. *telegram.Bot implements it.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int, kb models.Keyboard) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb models.Keyboard) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb models.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	SendPhotos(ctx context.Context, chatID int64, urls []string) error
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Backend is the assignment portal. *upstream.Client implements it.
type Backend interface {
	UndoneList(ctx context.Context, cred upstream.Credentials) (*dto.UndoneList, error)
	Homework(ctx context.Context, cred upstream.Credentials, id string) (*dto.Detail, error)
	CachedItem(ctx context.Context, cred upstream.Credentials, id string) (*dto.UndoneItem, error)
	Upload(ctx context.Context, cred upstream.Credentials, req dto.UploadRequest) (*dto.UploadResult, error)
	Submit(ctx context.Context, cred upstream.Credentials, req dto.SubmitRequest) error
}

func credentials(user *models.User) upstream.Credentials {
	return upstream.Credentials{Username: user.Username, Password: user.Password}
}

// findUser loads a chat user, mapping a missing row to ErrNotLoggedIn.
func findUser(ctx context.Context, users repository.UserRepository, userID int64) (*models.User, error) {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	return user, nil
}

// backendError turns a definitive 401 into ErrLoginExpired and wraps the rest.
func backendError(action string, err error) error {
	if upstream.IsUnauthorized(err) {
		return ErrLoginExpired
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
