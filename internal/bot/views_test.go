package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/bot/middleware"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/storage"
)

type fakeBot struct {
	sent   []tgbotapi.MessageConfig
	admins []tgbotapi.ChatMember
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetChatAdministrators(tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	return b.admins, nil
}

func (b *fakeBot) lastText(t *testing.T) string {
	t.Helper()

	if len(b.sent) == 0 {
		t.Fatal("no message sent")
	}
	return b.sent[len(b.sent)-1].Text
}

func command(text string, fromID int64) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		cmdLen = i
	}

	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42},
		From:     &tgbotapi.User{ID: fromID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

type fakeQuerier struct {
	filter storage.ArticleFilter
	limit  int
	result []model.Article
}

func (q *fakeQuerier) Query(_ context.Context, filter storage.ArticleFilter, _ storage.Order, limit, _ int) ([]model.Article, error) {
	q.filter = filter
	q.limit = limit
	return q.result, nil
}

func TestParseLatestArgs(t *testing.T) {
	tests := []struct {
		args   string
		source string
		limit  int
	}{
		{"", "", defaultLatestLimit},
		{"Jinse", "Jinse", defaultLatestLimit},
		{"Jinse 3", "Jinse", 3},
		{"100", "", maxLatestLimit},
		{"0", "", 1},
	}

	for _, tt := range tests {
		filter, limit := parseLatestArgs(tt.args)
		if filter.Source != tt.source || limit != tt.limit {
			t.Errorf("parseLatestArgs(%q) = %q, %d; want %q, %d", tt.args, filter.Source, limit, tt.source, tt.limit)
		}
	}
}

func TestViewCmdLatest(t *testing.T) {
	published := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	q := &fakeQuerier{result: []model.Article{{
		URL:             "https://www.jinse.cn/lives/1.html",
		Title:           "比特币突破 7 万美元",
		Source:          "Jinse",
		PublishedAt:     &published,
		MatchedKeywords: []string{"BTC"},
	}}}
	bot := &fakeBot{}

	if err := ViewCmdLatest(q)(context.Background(), bot, command("/latest Jinse 2", 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.filter.Source != "Jinse" || q.limit != 2 {
		t.Errorf("unexpected query: %+v limit=%d", q.filter, q.limit)
	}

	text := bot.lastText(t)
	for _, want := range []string{"比特币突破 7 万美元", `2025\-06\-03`, `\#BTC`, `jinse\.cn`} {
		if !strings.Contains(text, want) {
			t.Errorf("message must contain %q:\n%s", want, text)
		}
	}
}

type fakeStats map[string]int64

func (s fakeStats) CountBySource(context.Context) (map[string]int64, error) {
	return s, nil
}

type fakeRuns []model.RunSummary

func (r fakeRuns) Recent(context.Context, int) ([]model.RunSummary, error) {
	return r, nil
}

func TestViewCmdStats(t *testing.T) {
	bot := &fakeBot{}
	runs := fakeRuns{{Found: 10, Stored: 4, Duplicate: 6}}

	if err := ViewCmdStats(fakeStats{"BlockBeats": 3, "Jinse": 2}, runs)(context.Background(), bot, command("/stats", 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := bot.lastText(t)
	for _, want := range []string{"Статей в базе: 5", "BlockBeats: 3", "сохранено 4"} {
		if !strings.Contains(text, want) {
			t.Errorf("message must contain %q:\n%s", want, text)
		}
	}
}

func TestViewCmdRunAdminOnly(t *testing.T) {
	triggered := 0
	trigger := func() (string, bool) {
		triggered++
		return "run-1", true
	}

	bot := &fakeBot{admins: []tgbotapi.ChatMember{{User: &tgbotapi.User{ID: 7}}}}
	view := middleware.AdminOnly(-100, ViewCmdRun(trigger))

	if err := view(context.Background(), bot, command("/run", 8)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triggered != 0 {
		t.Error("non-admin must not trigger a run")
	}

	if err := view(context.Background(), bot, command("/run", 7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if triggered != 1 || !strings.Contains(bot.lastText(t), "run-1") {
		t.Errorf("admin must trigger a run, got %d, %q", triggered, bot.lastText(t))
	}
}

func TestViewCmdRunBusy(t *testing.T) {
	bot := &fakeBot{}

	view := ViewCmdRun(func() (string, bool) { return "", false })
	if err := view(context.Background(), bot, command("/run", 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(bot.lastText(t), "уже идет") {
		t.Errorf("unexpected reply %q", bot.lastText(t))
	}
}
