package dedup

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tomakado/containers/set"
)

type Scope int

const (
	// Только текущий прогон, набор в памяти
	ScopeRun Scope = iota
	// Все время: кэш просмотренных URL и уникальный индекс в БД
	ScopeAllTime
)

func (s Scope) String() string {
	if s == ScopeRun {
		return "run"
	}
	return "all_time"
}

// Проверка наличия статьи в хранилище
type ArticleChecker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// Быстрый кэш уже сохраненных URL. Необязателен
type SeenCache interface {
	Seen(ctx context.Context, url string) (bool, error)
	Remember(ctx context.Context, url string) error
}

// Дедупликатор живет один прогон. URL приходят уже нормализованными
type Deduplicator struct {
	mu  sync.Mutex
	run set.HashSet[string]

	articles ArticleChecker
	cache    SeenCache
	log      zerolog.Logger
}

// articles и cache могут быть nil
func New(articles ArticleChecker, cache SeenCache, log zerolog.Logger) *Deduplicator {
	return &Deduplicator{
		run:      set.New[string](),
		articles: articles,
		cache:    cache,
		log:      log.With().Str("component", "dedup").Logger(),
	}
}

// Для ScopeRun проверка и запоминание атомарны: из нескольких воркеров
// один и тот же URL получит только первый.
// Для ScopeAllTime ошибка хранилища возвращается наверх, ошибка кэша - нет
func (d *Deduplicator) IsDuplicate(ctx context.Context, url string, scope Scope) (bool, error) {
	switch scope {
	case ScopeRun:
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.run.Contains(url) {
			return true, nil
		}
		d.run.Add(url)
		return false, nil

	default:
		if d.cache != nil {
			seen, err := d.cache.Seen(ctx, url)
			if err != nil {
				d.log.Warn().Err(err).Str("url", url).Msg("seen cache lookup failed")
			} else if seen {
				return true, nil
			}
		}

		if d.articles == nil {
			return false, nil
		}

		exists, err := d.articles.Exists(ctx, url)
		if err != nil {
			return false, err
		}
		if exists {
			d.Remember(ctx, url)
		}
		return exists, nil
	}
}

// Запоминает сохраненный URL в кэше
func (d *Deduplicator) Remember(ctx context.Context, url string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Remember(ctx, url); err != nil {
		d.log.Warn().Err(err).Str("url", url).Msg("failed to remember url")
	}
}
