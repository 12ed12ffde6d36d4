// Package telegram adapts the Telegram Bot API to the chat operations the
// services need. Outbound calls share one rate limiter.
package telegram

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/time/rate"

	"github.com/YouXam/ucloud-bot/internal/models"
)

const parseModeHTML = "HTML"

// Bot sends and edits messages for the services.
type Bot struct {
	api     *tgbotapi.BotAPI
	secret  string
	limiter *rate.Limiter
}

// New connects to the Bot API with the given token. perSecond bounds
// outbound calls; zero or less disables throttling.
func New(token, secret string, perSecond int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return NewWithAPI(api, secret, perSecond), nil
}

// NewWithEndpoint is New against a custom Bot API endpoint, formatted like
// tgbotapi.APIEndpoint.
func NewWithEndpoint(token, secret, endpoint string, client *http.Client, perSecond int) (*Bot, error) {
	if client == nil {
		client = &http.Client{}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return NewWithAPI(api, secret, perSecond), nil
}

func NewWithAPI(api *tgbotapi.BotAPI, secret string, perSecond int) *Bot {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = perSecond
	}
	jww.INFO.Printf("Authorized on telegram account %s", api.Self.UserName)
	return &Bot{
		api:     api,
		secret:  secret,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Secret is the token Telegram echoes in the webhook secret header.
func (b *Bot) Secret() string {
	return b.secret
}

// SendMessage sends an HTML message and returns its message id.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, replyTo int, kb models.Keyboard) (int, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = replyTo
	if len(kb) > 0 {
		msg.ReplyMarkup = Markup(kb)
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text and buttons of a message. An empty keyboard
// removes the buttons.
func (b *Bot) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb models.Keyboard) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, Markup(kb))
	edit.ParseMode = parseModeHTML
	edit.DisableWebPagePreview = true

	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit message %d: %w", messageID, err)
	}
	return nil
}

// EditKeyboard replaces only the buttons of a message.
func (b *Bot) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb models.Keyboard) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, Markup(kb))
	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit keyboard of message %d: %w", messageID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally as a blocking alert.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := b.api.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback %s: %w", callbackID, err)
	}
	return nil
}

// SendPhotos sends image URLs as one media group.
func (b *Bot) SendPhotos(ctx context.Context, chatID int64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	media := make([]interface{}, 0, len(urls))
	for _, u := range urls {
		media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(u)))
	}
	if _, err := b.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		return fmt.Errorf("failed to send media group to %d: %w", chatID, err)
	}
	return nil
}

// FileURL resolves a file id to a temporary download URL.
func (b *Bot) FileURL(ctx context.Context, fileID string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}

	link, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}
	return link, nil
}

// SetWebhook registers url as the update endpoint together with the secret token.
func (b *Bot) SetWebhook(ctx context.Context, url string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	params := tgbotapi.Params{"url": url}
	if b.secret != "" {
		params["secret_token"] = b.secret
	}
	resp, err := b.api.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("failed to set webhook: %s", resp.Description)
	}
	return nil
}
