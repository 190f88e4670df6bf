package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/rs/zerolog"
)

const (
	sourceColumnWidth = 12
	errorLineWidth    = 120
	maxErrorLines     = 5
)

// Отправка сообщений в телеграм. *tgbotapi.BotAPI подходит
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Публикует итоги прогонов в канал
type Notifier struct {
	bot MessageSender
	// id канала, куда отправляем итоги
	channelID int64
	// Не писать в канал о прогонах, где ничего не сохранилось и не было ошибок
	skipEmpty bool
	log       zerolog.Logger
}

func New(bot MessageSender, channelID int64, skipEmpty bool, log zerolog.Logger) *Notifier {
	return &Notifier{
		bot:       bot,
		channelID: channelID,
		skipEmpty: skipEmpty,
		log:       log.With().Str("component", "notifier").Logger(),
	}
}

// Реализует orchestrator.Reporter
func (n *Notifier) Report(_ context.Context, summary model.RunSummary) error {
	if n.skipEmpty && !summary.Failed && summary.Stored == 0 && summary.FailedCount() == 0 {
		n.log.Debug().Str("run_id", summary.ID).Msg("nothing new, skipping notification")
		return nil
	}

	msg := tgbotapi.NewMessage(n.channelID, FormatSummary(summary))
	// Т.к. используется MarkdownV2, все аргументы экранируем
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send run summary: %w", err)
	}

	return nil
}

// Итог прогона в MarkdownV2: шапка, таблица по источникам в моноширинном блоке и первые ошибки
func FormatSummary(summary model.RunSummary) string {
	var b strings.Builder

	status := "✅ Прогон завершен"
	if summary.Failed {
		status = "❌ Прогон завершился с ошибкой"
	}

	fmt.Fprintf(&b, "*%s*\n", markup.EscapeForMarkdown(status))
	fmt.Fprintf(
		&b,
		"Найдено: %d, сохранено: %d, дубликатов: %d, пропущено: %d, ошибок: %d\n",
		summary.Found, summary.Stored, summary.Duplicate, summary.Skipped, summary.FailedCount(),
	)
	fmt.Fprintf(&b, "Длительность: %s\n", markup.EscapeForMarkdown(summary.Duration().Round(100*time.Millisecond).String()))

	if len(summary.Sources) > 0 {
		b.WriteString("```\n")
		fmt.Fprintf(&b, "%s %5s %5s %5s %5s\n", markup.Pad("source", sourceColumnWidth), "found", "new", "dup", "fail")
		for _, src := range summary.Sources {
			name := src.Source
			if src.ListingFailed {
				name = "!" + name
			}
			fmt.Fprintf(
				&b,
				"%s %5d %5d %5d %5d\n",
				markup.EscapeForCode(markup.Pad(name, sourceColumnWidth)),
				src.Found, src.Stored, src.Duplicate, src.Failed(),
			)
		}
		b.WriteString("```\n")
	}

	for i, e := range summary.Errors {
		if i == maxErrorLines {
			fmt.Fprintf(&b, "_%s_\n", markup.EscapeForMarkdown(fmt.Sprintf("и еще %d", len(summary.Errors)-maxErrorLines)))
			break
		}
		fmt.Fprintf(&b, "• %s\n", markup.EscapeForMarkdown(markup.Truncate(e, errorLineWidth)))
	}

	return strings.TrimRight(b.String(), "\n")
}
