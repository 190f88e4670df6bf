package middleware

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit"
)

// Пускает к view только администраторов канала
func AdminOnly(channelID int64, next botkit.ViewFunc) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.BotAPI, update tgbotapi.Update) error {
		admins, err := bot.GetChatAdministrators(
			tgbotapi.ChatAdministratorsConfig{
				ChatConfig: tgbotapi.ChatConfig{
					ChatID: channelID,
				},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to get channel admins: %w", err)
		}

		if update.Message.From != nil {
			for _, admin := range admins {
				if admin.User != nil && admin.User.ID == update.Message.From.ID {
					return next(ctx, bot, update)
				}
			}
		}

		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "У вас нет прав для выполнения этой команды")); err != nil {
			return err
		}
		return nil
	}
}
