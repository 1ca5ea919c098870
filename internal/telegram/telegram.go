// Package telegram hosts the Telegram client, update routing, and the
// outbound transport used by the orchestrator.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"prop_support_bot/internal/config"
	"prop_support_bot/internal/domain"
	"prop_support_bot/internal/logging"
	"prop_support_bot/internal/menu"
)

const startCommand = "/start"

// MessageHandler receives classified inbound events. The orchestrator
// implements it.
type MessageHandler interface {
	HandleStart(ctx context.Context, userID int64, profile domain.Profile)
	HandleMessage(ctx context.Context, userID int64, profile domain.Profile, text string)
}

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

var defaultAllowedUpdates = bot.AllowedUpdates{
	"message",
}

// createBot is overridable for tests.
var createBot = func(token string, options ...bot.Option) (botAPI, error) {
	return bot.New(token, options...)
}

// Client wraps the Telegram bot instance. It routes inbound private-chat text
// to the bound MessageHandler and implements the orchestrator's Transport.
type Client struct {
	bot     botAPI
	handler MessageHandler
	logger  *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling. A handler must be
// bound with Bind before Start; updates arriving earlier are dropped.
func NewClient(cfg config.Config, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{logger: logger}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.handleUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot
	return client, nil
}

// Bind attaches the inbound message handler. Called once during wiring, after
// the orchestrator has been constructed with this client as its transport.
func (c *Client) Bind(handler MessageHandler) {
	c.handler = handler
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// Send delivers text to the user's private chat with the reply keyboard for
// the given menu hint and returns the sent message id.
func (c *Client) Send(ctx context.Context, userID int64, text string, m menu.Menu) (int, error) {
	params := &bot.SendMessageParams{
		ChatID: userID,
		Text:   text,
	}
	if keyboard := keyboardFor(m); keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	if msg == nil {
		return 0, errors.New("send message returned no message")
	}

	return msg.ID, nil
}

// Delete removes a previously sent message. Best-effort; callers log and
// swallow failures.
func (c *Client) Delete(ctx context.Context, userID int64, messageID int) error {
	if _, err := c.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    userID,
		MessageID: messageID,
	}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

// handleUpdate routes one polled update. Only private-chat text messages are
// of interest; everything else is ignored.
func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}

	msg := update.Message
	if msg.Chat.Type != models.ChatTypePrivate {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	handler := c.handler
	if handler == nil {
		c.logger.WithField("event", "update_unbound").Warn("dropping update received before handler was bound")
		return
	}

	profile := domain.Profile{
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.Username,
	}

	if text == startCommand {
		handler.HandleStart(ctx, msg.From.ID, profile)
		return
	}

	handler.HandleMessage(ctx, msg.From.ID, profile, text)
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
