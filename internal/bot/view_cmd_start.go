package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit"
)

const startText = `Я собираю крипто-новости с BlockBeats, Jinse, PANews и других сайтов.

/stats - сколько статей в базе и как прошел последний прогон
/latest [источник] [N] - последние статьи
/run - запустить прогон (только для админов)`

func ViewCmdStart() botkit.ViewFunc {
	return func(_ context.Context, bot botkit.BotAPI, update tgbotapi.Update) error {
		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, startText)); err != nil {
			return err
		}
		return nil
	}
}
