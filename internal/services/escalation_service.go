package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/YouXam/ucloud-bot/internal/dto"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/repository"
	"github.com/YouXam/ucloud-bot/internal/upstream"
)

const loginExpiredNotice = "Your login has expired, possibly because the password changed. " +
	"Reminders are now off. Use /login username password to log in again."

// TickReport summarizes one escalation pass.
type TickReport struct {
	TickID   string
	Users    int
	Notified int
	Expired  int
	Skipped  int
	Failed   int
}

func (r TickReport) String() string {
	return fmt.Sprintf("tick %s: users=%d notified=%d expired=%d skipped=%d failed=%d",
		r.TickID, r.Users, r.Notified, r.Expired, r.Skipped, r.Failed)
}

// EscalationService sends deadline reminders, at most one per item and tier.
type EscalationService struct {
	users       repository.UserRepository
	backend     Backend
	chat        Messenger
	fileBaseURL string
	now         func() time.Time
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(users repository.UserRepository, backend Backend, chat Messenger, fileBaseURL string) *EscalationService {
	return &EscalationService{
		users:       users,
		backend:     backend,
		chat:        chat,
		fileBaseURL: fileBaseURL,
		now:         time.Now,
	}
}

// Tick processes every push-enabled user once, one user at a time. Failures
// are contained to the user or item they occur in.
func (s *EscalationService) Tick(ctx context.Context) (*TickReport, error) {
	report := &TickReport{TickID: uuid.NewString()}

	users, err := s.users.ListPushEnabled(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list push users: %w", err)
	}
	report.Users = len(users)

	now := s.now()
	details := map[string]*dto.Detail{}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.processUser(ctx, report, &users[i], now, details)
	}

	jww.INFO.Println(report.String())
	return report, nil
}

func (s *EscalationService) processUser(ctx context.Context, report *TickReport, user *models.User, now time.Time, details map[string]*dto.Detail) {
	list, err := s.backend.UndoneList(ctx, credentials(user))
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.expire(ctx, report, user)
			return
		}
		jww.WARN.Printf("[%s] Skipping %s: %v", report.TickID, user.Username, err)
		report.Skipped++
		return
	}
	if len(list.UndoneList) == 0 {
		return
	}

	last := user.TierMap
	next := models.TierMap{}
	for i := range list.UndoneList {
		item := &list.UndoneList[i]

		deadline, err := models.ParseDeadline(item.EndTime)
		if err != nil {
			jww.WARN.Printf("[%s] Bad deadline %q on %s for %s: %v", report.TickID, item.EndTime, item.ActivityID, user.Username, err)
			report.Failed++
			continue
		}

		tier := models.ComputeTier(deadline, now)
		if last[item.ActivityID] == tier {
			next[item.ActivityID] = tier
			continue
		}

		if err := s.notify(ctx, user, item, tier, details); err != nil {
			jww.WARN.Printf("[%s] Failed to notify %s about %s: %v", report.TickID, user.Username, item.ActivityID, err)
			report.Failed++
			continue
		}
		jww.DEBUG.Printf("[%s] Notified %s about %s (%s)", report.TickID, user.Username, item.ActivityID, tier)
		next[item.ActivityID] = tier
		report.Notified++
	}

	if err := s.users.SaveTierMap(ctx, user.ID, next); err != nil {
		jww.ERROR.Printf("[%s] Failed to save tiers for %s: %v", report.TickID, user.Username, err)
		report.Failed++
	}
}

func (s *EscalationService) expire(ctx context.Context, report *TickReport, user *models.User) {
	report.Expired++
	if err := s.users.SetPush(ctx, user.ID, false); err != nil {
		jww.ERROR.Printf("[%s] Failed to disable push for %s: %v", report.TickID, user.Username, err)
		return
	}
	if _, err := s.chat.SendMessage(ctx, user.ID, loginExpiredNotice, 0, nil); err != nil {
		jww.WARN.Printf("[%s] Failed to tell %s their login expired: %v", report.TickID, user.Username, err)
	}
	jww.INFO.Printf("[%s] Credentials of %s rejected, push disabled", report.TickID, user.Username)
}

// notify sends one reminder. Assignment details are fetched once per tick and
// shared between users; other item types get a short notice.
func (s *EscalationService) notify(ctx context.Context, user *models.User, item *dto.UndoneItem, tier models.Tier, details map[string]*dto.Detail) error {
	header := tierHeaders[tier]

	if !item.IsAssignment() {
		card := renderItemNotice(item, header)
		_, err := s.chat.SendMessage(ctx, user.ID, card.Text, 0, card.Keyboard)
		return err
	}

	detail, ok := details[item.ActivityID]
	if !ok {
		fetched, err := s.backend.Homework(ctx, credentials(user), item.ActivityID)
		if err != nil {
			return fmt.Errorf("failed to fetch detail: %w", err)
		}
		details[item.ActivityID] = fetched
		detail = fetched
	}

	card := renderAssignmentCard(item.ActivityID, detail, s.fileBaseURL, header)
	if err := s.chat.SendPhotos(ctx, user.ID, card.Images); err != nil {
		jww.WARN.Printf("Failed to send images of %s to %s: %v", item.ActivityID, user.Username, err)
	}
	_, err := s.chat.SendMessage(ctx, user.ID, card.Text, 0, card.Keyboard)
	return err
}
