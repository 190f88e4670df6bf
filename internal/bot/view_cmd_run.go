package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit"
)

// Запускает прогон в фоне. false - прогон уже идет
type RunTrigger func() (runID string, started bool)

// Итог прогона придет в канал через notifier
func ViewCmdRun(trigger RunTrigger) botkit.ViewFunc {
	return func(_ context.Context, bot botkit.BotAPI, update tgbotapi.Update) error {
		msgText := "Прогон уже идет, дождитесь его окончания"
		if runID, ok := trigger(); ok {
			msgText = fmt.Sprintf("Прогон %s запущен", runID)
		}

		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, msgText)); err != nil {
			return err
		}
		return nil
	}
}
