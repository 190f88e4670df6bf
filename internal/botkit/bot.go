package botkit

import (
	"context"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	// Сколько секунд телеграм держит запрос getUpdates (long polling)
	longPollTimeout = 60
	// Сколько времени дается view на обработку одного update
	defaultUpdateTimeout = 30 * time.Second
)

// Часть клиента телеграма, которая нужна view. *tgbotapi.BotAPI ее реализует
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Обработчик одной команды. Update - любое событие от телеграма
type ViewFunc func(ctx context.Context, bot BotAPI, update tgbotapi.Update) error

type Bot struct {
	// Инстанс апи телеграма
	api *tgbotapi.BotAPI
	// Команда -> view
	cmdViews map[string]ViewFunc
	// Сколько времени дается view на обработку одного update
	updateTimeout time.Duration
	log           zerolog.Logger
}

func New(api *tgbotapi.BotAPI, log zerolog.Logger) *Bot {
	return &Bot{
		api:           api,
		cmdViews:      make(map[string]ViewFunc),
		updateTimeout: defaultUpdateTimeout,
		log:           log.With().Str("component", "bot").Logger(),
	}
}

// Регистрирует view для команды
func (b *Bot) RegisterCmdView(cmd string, view ViewFunc) {
	b.cmdViews[cmd] = view
}

func (b *Bot) Run(ctx context.Context) error {
	updates := b.api.GetUpdatesChan(updateConfig())
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case update := <-updates:
			updateCtx, updateCancel := context.WithTimeout(ctx, b.updateTimeout)
			b.handleUpdate(updateCtx, b.api, update)
			updateCancel()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func updateConfig() tgbotapi.UpdateConfig {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPollTimeout
	return u
}

// Роутит команду на соответствующую view
func (b *Bot) handleUpdate(ctx context.Context, api BotAPI, update tgbotapi.Update) {
	// Паника в одной view не должна ронять бота
	defer func() {
		if p := recover(); p != nil {
			b.log.Error().Interface("panic", p).Str("stack", string(debug.Stack())).Msg("panic recovered")
		}
	}()

	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	cmd := update.Message.Command()

	view, ok := b.cmdViews[cmd]
	if !ok {
		return
	}

	if err := view(ctx, api, update); err != nil {
		b.log.Error().Err(err).Str("cmd", cmd).Msg("failed to handle update")

		if _, err := api.Send(
			tgbotapi.NewMessage(update.Message.Chat.ID, "internal error"),
		); err != nil {
			b.log.Error().Err(err).Msg("failed to send message")
		}
	}
}
