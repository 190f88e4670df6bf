package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/dedup"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/relevance"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/source"
	"github.com/rs/zerolog"
)

const (
	defaultPersistTimeout = 10 * time.Second
	// Сколько ошибок по статьям попадает в отчет, остальные только в лог
	maxRecordedErrors = 20
)

type ArticleParser interface {
	Parse(raw []byte, pageURL string, rule source.Rule) (model.Article, error)
}

type RelevanceFilter interface {
	IsRelevant(ctx context.Context, article model.Article) relevance.Decision
}

type ArticleStore interface {
	InsertIfAbsent(ctx context.Context, article model.Article) (model.InsertOutcome, error)
	Exists(ctx context.Context, url string) (bool, error)
}

// Получатель итогов прогона: журнал в БД, канал в телеграме
type Reporter interface {
	Report(ctx context.Context, summary model.RunSummary) error
}

type Options struct {
	// Лимиты на сохраненные статьи. 0 - без лимита
	MaxArticlesPerSource int
	MaxArticlesTotal     int
	// Статьи старше стольких дней пропускаются. 0 - без фильтра
	DaysFilter int
	// Сколько источников обрабатывать параллельно
	Workers int
	// Как часто запускать прогон в режиме Start
	RunInterval time.Duration
	// Сколько ждать записи уже разобранной статьи после отмены контекста
	PersistTimeout time.Duration
}

type Orchestrator struct {
	sources  []source.Source
	fetcher  source.PageFetcher
	parser   ArticleParser
	filter   RelevanceFilter
	articles ArticleStore
	// Кэш просмотренных URL, может быть nil
	cache     dedup.SeenCache
	reporters []Reporter

	opts Options
	log  zerolog.Logger
	now  func() time.Time

	// Одновременно идет не больше одного прогона
	running sync.Mutex
	// Прогоны, запущенные через Trigger
	background sync.WaitGroup
}

func New(
	sources []source.Source,
	fetcher source.PageFetcher,
	parser ArticleParser,
	filter RelevanceFilter,
	articles ArticleStore,
	cache dedup.SeenCache,
	opts Options,
	log zerolog.Logger,
	reporters ...Reporter,
) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}

	return &Orchestrator{
		sources:   sources,
		fetcher:   fetcher,
		parser:    parser,
		filter:    filter,
		articles:  articles,
		cache:     cache,
		reporters: reporters,
		opts:      opts,
		log:       log.With().Str("component", "orchestrator").Logger(),
		now:       time.Now,
	}
}

// Запускает прогон сразу и затем каждые RunInterval, пока не отменят контекст
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.opts.RunInterval <= 0 {
		return errors.New("run interval must be positive")
	}

	ticker := time.NewTicker(o.opts.RunInterval)
	defer ticker.Stop()

	o.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.Run(ctx)
		}
	}
}

// Выполняет один прогон. Если прогон уже идет, ждет его окончания
func (o *Orchestrator) Run(ctx context.Context) model.RunSummary {
	o.running.Lock()
	defer o.running.Unlock()

	return o.run(ctx)
}

// Выполняет прогон, только если другой прогон сейчас не идет
func (o *Orchestrator) TryRun(ctx context.Context) (model.RunSummary, bool) {
	if !o.running.TryLock() {
		return model.RunSummary{}, false
	}
	defer o.running.Unlock()

	return o.run(ctx), true
}

// Запускает прогон в фоне и сразу возвращает его ID.
// Возвращает false, если другой прогон сейчас идет
func (o *Orchestrator) Trigger(ctx context.Context) (string, bool) {
	if !o.running.TryLock() {
		return "", false
	}

	id := uuid.NewString()

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		defer o.running.Unlock()
		o.runWithID(ctx, id)
	}()

	return id, true
}

// Ждет окончания прогонов, запущенных через Trigger
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

func (o *Orchestrator) run(ctx context.Context) model.RunSummary {
	return o.runWithID(ctx, uuid.NewString())
}

func (o *Orchestrator) runWithID(ctx context.Context, id string) model.RunSummary {
	summary := model.RunSummary{
		ID:        id,
		StartedAt: o.now().UTC(),
	}

	log := o.log.With().Str("run_id", id).Logger()
	log.Info().Int("sources", len(o.sources)).Msg("run started")

	var (
		deduplicator = dedup.New(o.articles, o.cache, o.log)
		stored       atomic.Int64
		results      = make([]sourceResult, len(o.sources))
		cutoff       time.Time
	)
	if o.opts.DaysFilter > 0 {
		cutoff = summary.StartedAt.AddDate(0, 0, -o.opts.DaysFilter)
	}

	// Источники обрабатываются независимо: медленный или сломанный сайт не должен
	// задерживать остальные. Одновременно работает не больше Workers источников
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.opts.Workers)
	)

	for i, src := range o.sources {
		wg.Add(1)

		go func(i int, src source.Source) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = sourceResult{summary: model.SourceSummary{Source: src.Name()}}
				return
			}
			defer func() { <-sem }()

			p := &sourceRun{
				o:            o,
				src:          src,
				deduplicator: deduplicator,
				stored:       &stored,
				cutoff:       cutoff,
				log:          log.With().Str("source", src.Name()).Logger(),
			}
			results[i] = p.process(ctx)
		}(i, src)
	}

	wg.Wait()

	var (
		listingFailures int
		persistAttempts int
	)
	for _, res := range results {
		summary.Add(res.summary)
		summary.Errors = appendErrors(summary.Errors, res.errors...)
		persistAttempts += res.persistAttempts
		if res.summary.ListingFailed {
			listingFailures++
		}
	}

	// Прогон целиком неуспешен только при системных сбоях:
	// не открылся ни один листинг или БД не приняла ни одной статьи
	switch {
	case len(o.sources) > 0 && listingFailures == len(o.sources):
		summary.Failed = true
		summary.Errors = append(summary.Errors, "all source listings failed")
	case persistAttempts > 0 && summary.PersistFailed == persistAttempts:
		summary.Failed = true
		summary.Errors = append(summary.Errors, fmt.Sprintf("persistence outage: %d of %d inserts failed", summary.PersistFailed, persistAttempts))
	}
	if summary.Failed {
		summary.Stored = 0
	}

	summary.FinishedAt = o.now().UTC()

	event := log.Info()
	if summary.Failed {
		event = log.Error()
	}
	event.
		Int("found", summary.Found).
		Int("stored", summary.Stored).
		Int("duplicate", summary.Duplicate).
		Int("skipped", summary.Skipped).
		Int("failed", summary.FailedCount()).
		Dur("duration", summary.Duration()).
		Bool("run_failed", summary.Failed).
		Msg("run finished")

	o.report(ctx, summary)

	return summary
}

// Отправляет итог всем получателям. Ошибки получателей на прогон не влияют
func (o *Orchestrator) report(ctx context.Context, summary model.RunSummary) {
	if len(o.reporters) == 0 {
		return
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.PersistTimeout)
	defer cancel()

	for _, r := range o.reporters {
		if err := r.Report(reportCtx, summary); err != nil {
			o.log.Warn().Err(err).Str("run_id", summary.ID).Msg("failed to report run")
		}
	}
}

func appendErrors(dst []string, errs ...string) []string {
	for _, e := range errs {
		if len(dst) >= maxRecordedErrors {
			return dst
		}
		dst = append(dst, e)
	}
	return dst
}
