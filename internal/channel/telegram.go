package channel

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/muni-info/backend/internal/conversation"
)

const telegramScheme = "telegram"

// TelegramBot is the slice of the bot API the channel needs; tests
// substitute their own implementation.
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking).
type BotFactory func(token string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramChannel long-polls a bot, runs each inbound message through
// the conversation engine and sends the reply back. It also implements
// notify.Notifier for "telegram:<chat id>" addresses, so status updates
// reach the same chat the complaint came from.
type TelegramChannel struct {
	token       string
	pollTimeout int
	engine      *conversation.Engine
	logger      zerolog.Logger
	bot         TelegramBot
	factory     BotFactory
	cancel      context.CancelFunc
}

func NewTelegramChannel(token string, pollTimeout int, engine *conversation.Engine, logger zerolog.Logger) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(token, pollTimeout, engine, logger, defaultBotFactory)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with a custom
// bot factory (for testing).
func NewTelegramChannelWithFactory(token string, pollTimeout int, engine *conversation.Engine, logger zerolog.Logger, factory BotFactory) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &TelegramChannel{
		token:       token,
		pollTimeout: pollTimeout,
		engine:      engine,
		logger:      logger,
		factory:     factory,
	}, nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	bot, err := t.factory(t.token, http.DefaultClient)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	t.logger.Info().Str("username", bot.GetSelf().UserName).Msg("telegram bot authorized")

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				t.handleMessage(ctx, update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	t.logger.Info().Msg("telegram polling started")
	return nil
}

func (t *TelegramChannel) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	t.logger.Info().Msg("telegram channel stopped")
}

func (t *TelegramChannel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	in := conversation.Intake{
		Address:   telegramScheme + ":" + strconv.FormatInt(msg.Chat.ID, 10),
		Text:      msg.Text,
		SessionID: strconv.Itoa(msg.MessageID),
		Channel:   conversation.ChannelTelegram,
	}
	if msg.IsCommand() && msg.Command() == "start" {
		in.Text = "start"
	}
	if msg.Location != nil {
		in.Latitude = msg.Location.Latitude
		in.Longitude = msg.Location.Longitude
		in.HasCoords = true
	}

	reply := t.engine.Handle(ctx, in)
	if err := t.sendText(msg.Chat.ID, reply.Text); err != nil {
		t.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("telegram reply failed")
	}
}

// Send implements notify.Notifier for telegram addresses.
func (t *TelegramChannel) Send(_ context.Context, address, text string) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not started")
	}
	raw, ok := strings.CutPrefix(address, telegramScheme+":")
	if !ok {
		return fmt.Errorf("not a telegram address: %q", address)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", raw, err)
	}
	return t.sendText(chatID, text)
}

// sendText chunks around Telegram's 4096-char message limit, splitting
// at a newline when one is close enough to the cut.
func (t *TelegramChannel) sendText(chatID int64, text string) error {
	const maxLen = 4000
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			if idx := strings.LastIndex(chunk[:maxLen], "\n"); idx > 0 {
				chunk = chunk[:idx]
			} else {
				chunk = chunk[:maxLen]
			}
		}
		text = strings.TrimPrefix(text[len(chunk):], "\n")
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}
