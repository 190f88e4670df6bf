package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

const maxQueryLimit = 500

// Ошибка работы с БД, кроме ожидаемого конфликта по url
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Хранилище статей. Только добавление и чтение: ни обновлять, ни удалять статьи отсюда нельзя
type ArticlePostgresStorage struct {
	db *sqlx.DB
}

func NewArticleStorage(db *sqlx.DB) *ArticlePostgresStorage {
	return &ArticlePostgresStorage{db: db}
}

// Вставляет статью, если статьи с таким url еще нет.
// Повторная вставка - не ошибка, а AlreadyExists
func (s *ArticlePostgresStorage) InsertIfAbsent(ctx context.Context, article model.Article) (model.InsertOutcome, error) {
	var id int64

	err := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO articles (url, title, body_text, publication_date, source, matched_keywords, relevance_score, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO NOTHING
		RETURNING id`,
		article.URL,
		article.Title,
		article.BodyText,
		article.PublishedAt,
		article.Source,
		pq.StringArray(lo.Ternary(article.MatchedKeywords == nil, []string{}, article.MatchedKeywords)),
		article.RelevanceScore,
		article.ScrapedAt.UTC(),
	).Scan(&id)

	// DO NOTHING не возвращает строк - значит url уже есть
	if errors.Is(err, sql.ErrNoRows) {
		return model.AlreadyExists, nil
	}
	if err != nil {
		return 0, &PersistError{Op: "insert article", Err: err}
	}

	return model.Inserted, nil
}

func (s *ArticlePostgresStorage) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM articles WHERE url = $1)`, url); err != nil {
		return false, &PersistError{Op: "check article", Err: err}
	}
	return exists, nil
}

func (s *ArticlePostgresStorage) Count(ctx context.Context, filter ArticleFilter) (int64, error) {
	where, args := filter.where()

	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM articles`+where, args...); err != nil {
		return 0, &PersistError{Op: "count articles", Err: err}
	}
	return count, nil
}

// Количество статей по источникам
func (s *ArticlePostgresStorage) CountBySource(ctx context.Context) (map[string]int64, error) {
	var rows []dbSourceCount
	if err := s.db.SelectContext(ctx, &rows, `SELECT source, COUNT(*) AS count FROM articles GROUP BY source ORDER BY source`); err != nil {
		return nil, &PersistError{Op: "count by source", Err: err}
	}

	return lo.SliceToMap(rows, func(r dbSourceCount) (string, int64) {
		return r.Source, r.Count
	}), nil
}

type dbSourceCount struct {
	Source string `db:"source"`
	Count  int64  `db:"count"`
}

func (s *ArticlePostgresStorage) Query(ctx context.Context, filter ArticleFilter, order Order, limit, offset int) ([]model.Article, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	where, args := filter.where()
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		`SELECT id, url, title, body_text, publication_date, source, matched_keywords, relevance_score, scraped_at, created_at
		FROM articles%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		where, order.clause(), len(args)-1, len(args),
	)

	var articles []dbArticle
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, &PersistError{Op: "query articles", Err: err}
	}

	return lo.Map(articles, func(article dbArticle, _ int) model.Article {
		return article.toModel()
	}), nil
}

// Статья по url
func (s *ArticlePostgresStorage) ByURL(ctx context.Context, url string) (*model.Article, error) {
	var article dbArticle
	err := s.db.GetContext(
		ctx,
		&article,
		`SELECT id, url, title, body_text, publication_date, source, matched_keywords, relevance_score, scraped_at, created_at
		FROM articles WHERE url = $1`,
		url,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistError{Op: "get article", Err: err}
	}

	m := article.toModel()
	return &m, nil
}

// Внутренняя модель для работы с БД, чтобы правильно мапить его на колонки в таблице
type dbArticle struct {
	ID              int64           `db:"id"`
	URL             string          `db:"url"`
	Title           string          `db:"title"`
	BodyText        string          `db:"body_text"`
	PublicationDate sql.NullTime    `db:"publication_date"`
	Source          string          `db:"source"`
	MatchedKeywords pq.StringArray  `db:"matched_keywords"`
	RelevanceScore  sql.NullFloat64 `db:"relevance_score"`
	ScrapedAt       time.Time       `db:"scraped_at"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (a dbArticle) toModel() model.Article {
	m := model.Article{
		ID:              a.ID,
		URL:             a.URL,
		Title:           a.Title,
		BodyText:        a.BodyText,
		Source:          a.Source,
		MatchedKeywords: []string(a.MatchedKeywords),
		ScrapedAt:       a.ScrapedAt,
		CreatedAt:       a.CreatedAt,
	}

	if a.PublicationDate.Valid {
		t := a.PublicationDate.Time
		m.PublishedAt = &t
	}
	if a.RelevanceScore.Valid {
		score := a.RelevanceScore.Float64
		m.RelevanceScore = &score
	}

	return m
}
