package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kovalyov-valentin/crypto-news-scraper/internal/dedup"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/source"
	"github.com/rs/zerolog"
)

// Итог обработки одного источника
type sourceResult struct {
	summary model.SourceSummary
	errors  []string
	// Сколько раз пытались записать статью в БД
	persistAttempts int
}

// Обработка очереди одного источника. Живет внутри одного прогона
type sourceRun struct {
	o            *Orchestrator
	src          source.Source
	deduplicator *dedup.Deduplicator
	// Сохранено за прогон по всем источникам
	stored *atomic.Int64
	// Нулевое значение - фильтр по дате выключен
	cutoff time.Time
	log    zerolog.Logger

	result sourceResult
}

func (p *sourceRun) process(ctx context.Context) sourceResult {
	p.result.summary.Source = p.src.Name()

	links, err := p.src.Listing(ctx, p.o.fetcher)
	// Отмена прогона - не сбой источника
	if err != nil && ctx.Err() != nil {
		p.log.Warn().Err(err).Msg("run cancelled before listing was fetched")
		return p.result
	}
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch listing")
		p.result.summary.ListingFailed = true
		p.result.summary.FetchFailed++
		p.recordError(fmt.Errorf("%s: listing: %w", p.src.Name(), err))
		return p.result
	}

	p.result.summary.Found = len(links)
	p.log.Debug().Int("links", len(links)).Msg("listing fetched")

	for _, link := range links {
		// После отмены новые страницы не загружаем
		if ctx.Err() != nil {
			p.log.Warn().Msg("run cancelled, stopping source")
			break
		}

		if p.capReached() {
			p.result.summary.CapReached = true
			p.log.Info().Int("stored", p.result.summary.Stored).Msg("article cap reached")
			break
		}

		if stop := p.processLink(ctx, link); stop {
			break
		}
	}

	return p.result
}

// Обрабатывает одну ссылку. true - источник дальше не обрабатываем
func (p *sourceRun) processLink(ctx context.Context, link string) bool {
	s := &p.result.summary
	log := p.log.With().Str("url", link).Logger()

	url, err := dedup.NormalizeURL(link)
	if err != nil {
		log.Warn().Err(err).Msg("skipping malformed url")
		s.FetchFailed++
		p.recordError(err)
		return false
	}

	if dup, _ := p.deduplicator.IsDuplicate(ctx, url, dedup.ScopeRun); dup {
		s.Duplicate++
		return false
	}

	// Если хранилище недоступно, статью все равно забираем:
	// окончательно дубликат определит уникальный индекс при вставке
	dup, err := p.deduplicator.IsDuplicate(ctx, url, dedup.ScopeAllTime)
	if err != nil {
		log.Warn().Err(err).Msg("all-time duplicate check failed")
	}
	if dup {
		s.Duplicate++
		return false
	}

	raw, err := p.o.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		log.Warn().Err(err).Msg("failed to fetch article")
		s.FetchFailed++
		p.recordError(err)
		return false
	}

	article, err := p.o.parser.Parse(raw, url, p.src.Rule())
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse article")
		s.ParseFailed++
		p.recordError(err)
		return false
	}

	article.URL = url
	article.Source = p.src.Name()
	article.ScrapedAt = p.o.now().UTC()
	if article.PublishedAt != nil && article.PublishedAt.After(article.ScrapedAt) {
		article.PublishedAt = nil
		article.PublishedAtFromMarkup = false
	}

	if p.outdated(article) {
		s.Skipped++
		// У sequential ID идут по убыванию: дальше только более старые статьи.
		// Дате из текста статьи для этого не доверяем, она может относиться к пересказу
		if p.src.Rule().Kind == source.ListingSequential && article.PublishedAtFromMarkup {
			log.Debug().Msg("reached articles older than days filter")
			return true
		}
		return false
	}

	decision := p.o.filter.IsRelevant(ctx, article)
	if !decision.Relevant {
		log.Debug().Msg("article is not relevant")
		s.Skipped++
		return false
	}
	article.MatchedKeywords = decision.Matched
	article.RelevanceScore = decision.Score

	// Место под общий лимит резервируем до вставки: воркеры делят его между собой
	reserved := p.stored.Add(1)
	if total := p.o.opts.MaxArticlesTotal; total > 0 && reserved > int64(total) {
		p.stored.Add(-1)
		s.CapReached = true
		return true
	}

	p.persist(ctx, article, log)

	return false
}

// Статья уже разобрана, поэтому пишем ее даже после отмены прогона,
// но не дольше PersistTimeout
func (p *sourceRun) persist(ctx context.Context, article model.Article, log zerolog.Logger) {
	s := &p.result.summary

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.o.opts.PersistTimeout)
	defer cancel()

	p.result.persistAttempts++

	outcome, err := p.o.articles.InsertIfAbsent(persistCtx, article)
	if err != nil {
		p.stored.Add(-1)
		log.Error().Err(err).Msg("failed to store article")
		s.PersistFailed++
		p.recordError(err)
		return
	}

	if outcome == model.AlreadyExists {
		p.stored.Add(-1)
		s.Duplicate++
		return
	}

	s.Stored++
	p.deduplicator.Remember(persistCtx, article.URL)
	log.Info().Str("title", article.Title).Strs("keywords", article.MatchedKeywords).Msg("article stored")
}

func (p *sourceRun) capReached() bool {
	if limit := p.o.opts.MaxArticlesPerSource; limit > 0 && p.result.summary.Stored >= limit {
		return true
	}
	if limit := p.o.opts.MaxArticlesTotal; limit > 0 && p.stored.Load() >= int64(limit) {
		return true
	}
	return false
}

// Статьи без даты не отбрасываем
func (p *sourceRun) outdated(article model.Article) bool {
	return !p.cutoff.IsZero() && article.PublishedAt != nil && article.PublishedAt.Before(p.cutoff)
}

func (p *sourceRun) recordError(err error) {
	if len(p.result.errors) < maxRecordedErrors {
		p.result.errors = append(p.result.errors, err.Error())
	}
}
