package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/YouXam/ucloud-bot/internal/services"
	"github.com/YouXam/ucloud-bot/internal/telegram"
)

const (
	textWelcome     = "Use /login username password to log in."
	textLoggingIn   = "Logging in…"
	textLoggedIn    = "Logged in, reminders are on. Use /list to see outstanding assignments."
	textLoading     = "Loading…"
	textPushOn      = "Reminders are on."
	textPushOff     = "Reminders are off."
	textNeedSession = "No submission in progress. Open an assignment with /list and press Submit first."
)

// WebhookHandler turns Telegram updates into service calls. Every business
// failure becomes a chat message or alert; the update itself is always
// acknowledged.
type WebhookHandler struct {
	accounts    *services.AccountService
	submissions *services.SubmissionService
	chat        services.Messenger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(accounts *services.AccountService, submissions *services.SubmissionService, chat services.Messenger) *WebhookHandler {
	return &WebhookHandler{
		accounts:    accounts,
		submissions: submissions,
		chat:        chat,
	}
}

// Handle processes one update.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		jww.WARN.Printf("Ignoring malformed update: %v", err)
		c.String(http.StatusOK, "Ok")
		return
	}

	ctx := c.Request.Context()
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	default:
		jww.DEBUG.Printf("Ignoring update %d", update.UpdateID)
	}

	c.String(http.StatusOK, "Ok")
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (h *WebhookHandler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID

	switch {
	case msg.IsCommand():
		h.handleCommand(ctx, userID, chatID, msg)

	case msg.Document != nil:
		h.addFile(ctx, chatID, services.FileInput{
			UserID:   userID,
			FileID:   msg.Document.FileID,
			Filename: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Caption:  msg.Caption,
		})

	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		h.addFile(ctx, chatID, services.FileInput{
			UserID:   userID,
			FileID:   largest.FileID,
			Filename: fmt.Sprintf("photo_%s.jpg", largest.FileUniqueID),
			MimeType: "image/jpeg",
			Caption:  msg.Caption,
		})

	case msg.Text != "":
		_, err := h.submissions.AppendText(ctx, userID, msg.Text)
		if err != nil && !isIdle(err) {
			h.reply(ctx, chatID, err)
		}
	}
}

func (h *WebhookHandler) addFile(ctx context.Context, chatID int64, in services.FileInput) {
	_, err := h.submissions.AddFile(ctx, in)
	switch {
	case err == nil:
	case isIdle(err):
		h.send(ctx, chatID, textNeedSession)
	default:
		h.reply(ctx, chatID, err)
	}
}

func (h *WebhookHandler) handleCommand(ctx context.Context, userID, chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		h.send(ctx, chatID, textWelcome)

	case "login":
		args := strings.Fields(msg.CommandArguments())
		var username, password string
		if len(args) >= 2 {
			username, password = args[0], args[1]
		}
		if username == "" || password == "" {
			h.reply(ctx, chatID, services.ErrMissingCredentials)
			return
		}

		pending := h.send(ctx, chatID, textLoggingIn)
		if _, err := h.accounts.Login(ctx, userID, username, password); err != nil {
			h.editOrSend(ctx, chatID, pending, userMessage(err), nil)
			logUnexpected(err)
			return
		}
		h.editOrSend(ctx, chatID, pending, textLoggedIn, nil)

	case "list":
		pending := h.send(ctx, chatID, textLoading)
		text, kb, err := h.accounts.ListUndone(ctx, userID)
		if err != nil {
			h.editOrSend(ctx, chatID, pending, userMessage(err), nil)
			logUnexpected(err)
			return
		}
		h.editOrSend(ctx, chatID, pending, text, kb)

	case "push":
		push, err := h.accounts.TogglePush(ctx, userID)
		if err != nil {
			h.reply(ctx, chatID, err)
			return
		}
		if push {
			h.send(ctx, chatID, textPushOn)
		} else {
			h.send(ctx, chatID, textPushOff)
		}
	}
}

func (h *WebhookHandler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		h.answer(ctx, cb.ID, nil)
		return
	}
	userID := cb.From.ID
	chatID := userID
	var cardID int
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
		cardID = cb.Message.MessageID
	}

	parsed := services.ParseCallback(cb.Data)

	var err error
	switch parsed.Kind {
	case services.CallbackSubmitting:
		err = services.ErrSessionActive

	case services.CallbackEnterSubmission:
		in := services.EnterInput{
			UserID:        userID,
			ChatID:        chatID,
			CardMessageID: cardID,
			AssignmentID:  parsed.AssignmentID,
		}
		if cb.Message != nil {
			in.CardKeyboard = telegram.KeyboardFrom(cb.Message.ReplyMarkup)
		}
		_, err = h.submissions.Enter(ctx, in)

	case services.CallbackFinalize:
		_, err = h.submissions.Finalize(ctx, userID)

	case services.CallbackCancel:
		err = h.submissions.Cancel(ctx, userID)

	case services.CallbackRemoveAttachment:
		_, err = h.submissions.RemoveAttachment(ctx, userID, parsed.Index)

	case services.CallbackClearAttachments:
		_, err = h.submissions.ClearAttachments(ctx, userID)

	case services.CallbackViewAssignment:
		var card *services.Card
		if card, err = h.accounts.AssignmentCard(ctx, userID, parsed.AssignmentID); err == nil {
			h.sendCard(ctx, chatID, card)
		}

	case services.CallbackViewItem:
		var card *services.Card
		if card, err = h.accounts.ItemCard(ctx, userID, parsed.ItemType, parsed.AssignmentID); err == nil {
			h.sendCard(ctx, chatID, card)
		}

	case services.CallbackNoop:
	default:
		jww.DEBUG.Printf("Ignoring callback data %q from %d", cb.Data, userID)
	}

	h.answer(ctx, cb.ID, err)
}

func (h *WebhookHandler) sendCard(ctx context.Context, chatID int64, card *services.Card) {
	if err := h.chat.SendPhotos(ctx, chatID, card.Images); err != nil {
		jww.WARN.Printf("Failed to send card images to %d: %v", chatID, err)
	}
	if _, err := h.chat.SendMessage(ctx, chatID, card.Text, 0, card.Keyboard); err != nil {
		jww.WARN.Printf("Failed to send card to %d: %v", chatID, err)
	}
}

// answer acknowledges a button press. Failures become a blocking alert,
// except an open submission, which only shows a toast.
func (h *WebhookHandler) answer(ctx context.Context, callbackID string, err error) {
	text, alert := "", false
	if err != nil {
		text, alert = userMessage(err), !errors.Is(err, services.ErrSessionActive)
		logUnexpected(err)
	}
	if ackErr := h.chat.AnswerCallback(ctx, callbackID, text, alert); ackErr != nil {
		jww.WARN.Printf("Failed to answer callback %s: %v", callbackID, ackErr)
	}
}

func (h *WebhookHandler) reply(ctx context.Context, chatID int64, err error) {
	logUnexpected(err)
	h.send(ctx, chatID, userMessage(err))
}

func (h *WebhookHandler) send(ctx context.Context, chatID int64, text string) int {
	id, err := h.chat.SendMessage(ctx, chatID, text, 0, nil)
	if err != nil {
		jww.WARN.Printf("Failed to send message to %d: %v", chatID, err)
	}
	return id
}

func (h *WebhookHandler) editOrSend(ctx context.Context, chatID int64, messageID int, text string, kb models.Keyboard) {
	if messageID == 0 {
		if _, err := h.chat.SendMessage(ctx, chatID, text, 0, kb); err != nil {
			jww.WARN.Printf("Failed to send message to %d: %v", chatID, err)
		}
		return
	}
	if err := h.chat.EditMessage(ctx, chatID, messageID, text, kb); err != nil {
		jww.WARN.Printf("Failed to edit message %d: %v", messageID, err)
	}
}

// isIdle reports errors that just mean the user has nothing open.
func isIdle(err error) bool {
	return errors.Is(err, services.ErrNoSession) || errors.Is(err, services.ErrNotLoggedIn)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrNotLoggedIn):
		return "Not logged in. Use /login username password to log in."
	case errors.Is(err, services.ErrMissingCredentials):
		return "Usage: /login username password"
	case errors.Is(err, services.ErrInvalidCredentials):
		return "Login failed: invalid username or password."
	case errors.Is(err, services.ErrLoginExpired):
		return "Your login has expired. Use /login username password to log in again."
	case errors.Is(err, services.ErrSessionActive):
		return "A submission is already in progress."
	case errors.Is(err, services.ErrNoSession):
		return "No submission in progress."
	case errors.Is(err, services.ErrEmptySubmission):
		return "Send content or attachments first."
	case errors.Is(err, services.ErrUploadInProgress):
		return "Wait for the upload to finish."
	case errors.Is(err, services.ErrAttachmentNotFound):
		return "That attachment no longer exists."
	case errors.Is(err, services.ErrSessionBusy):
		return "The submission is busy, please try again."
	default:
		return "Something went wrong, please try again."
	}
}

// logUnexpected logs errors that are not part of the normal conversation.
func logUnexpected(err error) {
	if userMessage(err) == userMessage(nil) {
		jww.ERROR.Printf("Webhook request failed: %v", err)
	}
}
