package services

import (
	"context"
	"fmt"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/YouXam/ucloud-bot/internal/dto"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/repository"
	"github.com/YouXam/ucloud-bot/internal/upstream"
)

// AccountService handles login, the push switch and read-only browsing
type AccountService struct {
	users       repository.UserRepository
	backend     Backend
	fileBaseURL string
}

// NewAccountService creates a new AccountService
func NewAccountService(users repository.UserRepository, backend Backend, fileBaseURL string) *AccountService {
	return &AccountService{
		users:       users,
		backend:     backend,
		fileBaseURL: fileBaseURL,
	}
}

// Login verifies credentials against the backend and stores them with
// reminders on. Every outstanding item except the first is recorded as
// already announced, so the next tick sends one sample reminder.
func (s *AccountService) Login(ctx context.Context, userID int64, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	list, err := s.backend.UndoneList(ctx, upstream.Credentials{Username: username, Password: password})
	if err != nil {
		if upstream.IsUnauthorized(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to verify credentials: %w", err)
	}

	user := &models.User{
		ID:       userID,
		Username: username,
		Password: password,
		Push:     true,
		TierMap:  seedTierMap(list.UndoneList),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	jww.INFO.Printf("User %d logged in as %s with %d outstanding items", userID, username, len(list.UndoneList))
	return user, nil
}

func seedTierMap(items []dto.UndoneItem) models.TierMap {
	tiers := models.TierMap{}
	for i, item := range items {
		if i == 0 {
			continue
		}
		tiers[item.ActivityID] = models.TierNew
	}
	return tiers
}

// TogglePush flips the reminder switch and returns the new state.
func (s *AccountService) TogglePush(ctx context.Context, userID int64) (bool, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return false, err
	}

	push := !user.Push
	if err := s.users.SetPush(ctx, userID, push); err != nil {
		return false, fmt.Errorf("failed to update push: %w", err)
	}
	return push, nil
}

// ListUndone renders the user's outstanding items grouped by course.
func (s *AccountService) ListUndone(ctx context.Context, userID int64) (string, models.Keyboard, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return "", nil, err
	}

	list, err := s.backend.UndoneList(ctx, credentials(user))
	if err != nil {
		return "", nil, backendError("fetch outstanding items", err)
	}

	text, kb := renderUndoneList(list)
	return text, kb, nil
}

// AssignmentCard renders an assignment's detail card.
func (s *AccountService) AssignmentCard(ctx context.Context, userID int64, assignmentID string) (*Card, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	detail, err := s.backend.Homework(ctx, credentials(user), assignmentID)
	if err != nil {
		return nil, backendError("fetch assignment", err)
	}

	card := renderAssignmentCard(assignmentID, detail, s.fileBaseURL, "")
	return &card, nil
}

// ItemCard renders the short card for an item the detail endpoint does not serve.
func (s *AccountService) ItemCard(ctx context.Context, userID int64, itemType int, id string) (*Card, error) {
	user, err := findUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.backend.CachedItem(ctx, credentials(user), id)
	if err != nil {
		return nil, backendError("fetch item", err)
	}
	if item.Type == 0 {
		item.Type = itemType
	}

	card := renderItemNotice(item, "")
	return &card, nil
}
