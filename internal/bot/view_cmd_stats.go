package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/samber/lo"
)

type StatsProvider interface {
	CountBySource(ctx context.Context) (map[string]int64, error)
}

type RunLister interface {
	Recent(ctx context.Context, limit int) ([]model.RunSummary, error)
}

func ViewCmdStats(stats StatsProvider, runs RunLister) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.BotAPI, update tgbotapi.Update) error {
		counts, err := stats.CountBySource(ctx)
		if err != nil {
			return err
		}

		lastRuns, err := runs.Recent(ctx, 1)
		if err != nil {
			return err
		}

		reply := tgbotapi.NewMessage(update.Message.Chat.ID, formatStats(counts, lastRuns))
		reply.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := bot.Send(reply); err != nil {
			return err
		}
		return nil
	}
}

func formatStats(counts map[string]int64, lastRuns []model.RunSummary) string {
	var (
		total   = lo.Sum(lo.Values(counts))
		sources = lo.Keys(counts)
		b       strings.Builder
	)
	sort.Strings(sources)

	fmt.Fprintf(&b, "*Статей в базе: %d*\n", total)
	for _, name := range sources {
		fmt.Fprintf(&b, "%s: %d\n", markup.EscapeForMarkdown(name), counts[name])
	}

	if len(lastRuns) == 0 {
		b.WriteString("\nПрогонов еще не было")
		return b.String()
	}

	last := lastRuns[0]
	status := "успешно"
	if last.Failed {
		status = "с ошибкой"
	}
	fmt.Fprintf(
		&b,
		"\nПоследний прогон %s %s: найдено %d, сохранено %d, дубликатов %d",
		markup.EscapeForMarkdown(last.StartedAt.Format("2006-01-02 15:04")),
		status,
		last.Found,
		last.Stored,
		last.Duplicate,
	)

	return b.String()
}
