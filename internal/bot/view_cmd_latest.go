package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit/markup"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/storage"
	"github.com/samber/lo"
)

const (
	defaultLatestLimit = 5
	maxLatestLimit     = 20
	titleWidth         = 80
)

type ArticleQuerier interface {
	Query(ctx context.Context, filter storage.ArticleFilter, order storage.Order, limit, offset int) ([]model.Article, error)
}

// /latest [источник] [N]
func ViewCmdLatest(articles ArticleQuerier) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.BotAPI, update tgbotapi.Update) error {
		filter, limit := parseLatestArgs(update.Message.CommandArguments())

		list, err := articles.Query(ctx, filter, storage.OrderScrapedDesc, limit, 0)
		if err != nil {
			return err
		}

		msgText := "Статей пока нет"
		if len(list) > 0 {
			msgText = strings.Join(lo.Map(list, func(article model.Article, _ int) string {
				return formatArticle(article)
			}), "\n\n")
		}

		reply := tgbotapi.NewMessage(update.Message.Chat.ID, msgText)
		reply.ParseMode = tgbotapi.ModeMarkdownV2
		reply.DisableWebPagePreview = true

		if _, err := bot.Send(reply); err != nil {
			return err
		}
		return nil
	}
}

func parseLatestArgs(args string) (storage.ArticleFilter, int) {
	var (
		filter storage.ArticleFilter
		limit  = defaultLatestLimit
	)

	for _, field := range strings.Fields(args) {
		if n, err := strconv.Atoi(field); err == nil {
			limit = n
			continue
		}
		filter.Source = field
	}

	if limit < 1 {
		limit = 1
	}
	if limit > maxLatestLimit {
		limit = maxLatestLimit
	}

	return filter, limit
}

func formatArticle(article model.Article) string {
	date := article.ScrapedAt
	if article.PublishedAt != nil {
		date = *article.PublishedAt
	}

	text := fmt.Sprintf(
		"*%s*\n%s · %s",
		markup.EscapeForMarkdown(markup.Truncate(article.Title, titleWidth)),
		markup.EscapeForMarkdown(article.Source),
		markup.EscapeForMarkdown(date.Format("2006-01-02")),
	)

	if len(article.MatchedKeywords) > 0 {
		text += "\n" + markup.EscapeForMarkdown("#"+strings.Join(article.MatchedKeywords, " #"))
	}

	return text + "\n" + markup.EscapeForMarkdown(article.URL)
}
