package api

import (
	"context"
	"time"

	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/storage"
)

type ArticleRepository interface {
	Count(ctx context.Context, filter storage.ArticleFilter) (int64, error)
	CountBySource(ctx context.Context) (map[string]int64, error)
	Query(ctx context.Context, filter storage.ArticleFilter, order storage.Order, limit, offset int) ([]model.Article, error)
	ByURL(ctx context.Context, url string) (*model.Article, error)
}

type RunRepository interface {
	Recent(ctx context.Context, limit int) ([]model.RunSummary, error)
}

// Проверка доступности БД, *sqlx.DB подходит
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Запускает прогон в фоне. false - прогон уже идет
type RunTrigger func() (runID string, started bool)

var _ ArticleRepository = (*storage.ArticlePostgresStorage)(nil)
var _ RunRepository = (*storage.RunPostgresStorage)(nil)

type Handler struct {
	articles ArticleRepository
	runs     RunRepository
	db       Pinger
	trigger  RunTrigger
}

// trigger может быть nil: тогда POST /api/runs недоступен
func NewHandler(articles ArticleRepository, runs RunRepository, db Pinger, trigger RunTrigger) *Handler {
	return &Handler{
		articles: articles,
		runs:     runs,
		db:       db,
		trigger:  trigger,
	}
}

type articleResponse struct {
	ID              int64      `json:"id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	BodyText        string     `json:"body_text"`
	PublicationDate *time.Time `json:"publication_date"`
	Source          string     `json:"source"`
	MatchedKeywords []string   `json:"matched_keywords"`
	RelevanceScore  *float64   `json:"relevance_score"`
	ScrapedAt       time.Time  `json:"scraped_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newArticleResponse(a model.Article) articleResponse {
	keywords := a.MatchedKeywords
	if keywords == nil {
		keywords = []string{}
	}

	return articleResponse{
		ID:              a.ID,
		URL:             a.URL,
		Title:           a.Title,
		BodyText:        a.BodyText,
		PublicationDate: a.PublishedAt,
		Source:          a.Source,
		MatchedKeywords: keywords,
		RelevanceScore:  a.RelevanceScore,
		ScrapedAt:       a.ScrapedAt,
		CreatedAt:       a.CreatedAt,
	}
}

type articlesResponse struct {
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Articles []articleResponse `json:"articles"`
}

type statsResponse struct {
	Total    int64            `json:"total"`
	BySource map[string]int64 `json:"by_source"`
	LastRun  *model.RunReport `json:"last_run"`
}
