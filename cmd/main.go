package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jessevdk/go-flags"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/api"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/bot"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/bot/middleware"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/botkit"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/config"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/dedup"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/fetcher"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/logger"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/notifier"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/orchestrator"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/parser"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/relevance"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/retry"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/source"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/storage"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Режим работы. Без флагов - один прогон с JSON отчетом в stdout
type Options struct {
	Config  []string `long:"config" short:"c" description:"HCL config file, can be repeated (default ./config.hcl, ./config.local.hcl)"`
	Once    bool     `long:"once" description:"Run the pipeline once and print the run summary as JSON"`
	Serve   bool     `long:"serve" description:"Run the pipeline every run_interval with the dashboard API and the Telegram bot"`
	Migrate bool     `long:"migrate" description:"Apply database migrations and exit"`
}

func main() {
	var opts Options

	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	code, err := run(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(code)
}

func run(opts Options) (int, error) {
	if opts.Serve && opts.Once {
		return 2, errors.New("--once and --serve are mutually exclusive")
	}

	cfg, err := config.Load(opts.Config...)
	if err != nil {
		return 1, err
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Инициализируем подключение к БД
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseDSN)
	if err != nil {
		return 1, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, err := storage.Migrate(db)
	if err != nil {
		return 1, err
	}
	log.Info().Uint("version", version).Msg("database schema is up to date")

	if opts.Migrate {
		return 0, nil
	}

	rules, err := source.LoadRules(cfg.SourcesFile)
	if err != nil {
		return 1, err
	}
	rules, err = source.Select(rules, cfg.Sources)
	if err != nil {
		return 1, err
	}
	sources, err := source.NewAll(rules)
	if err != nil {
		return 1, err
	}

	policy := retry.Default()
	policy.MaxRetries = cfg.MaxRetries
	policy.InitialDelay = cfg.RetryDelay
	policy.MaxDelay = cfg.MaxRetryDelay

	var classifier relevance.Classifier
	if cfg.UseAI {
		// nil указатель нельзя класть в интерфейс: фильтр решит, что AI включен
		if c := relevance.NewOpenAIClassifier(relevance.OpenAIOptions{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Topic:   cfg.OpenAITopic,
			Timeout: cfg.OpenAITimeout,
			Policy:  policy,
		}, log); c != nil {
			classifier = c
		}
	}

	var (
		articleStorage = storage.NewArticleStorage(db)
		runStorage     = storage.NewRunPostgresStorage(db)
		reporters      = []orchestrator.Reporter{runStorage}
		seenCache      dedup.SeenCache
		botAPI         *tgbotapi.BotAPI
	)

	if cfg.RedisAddr != "" {
		cache, err := dedup.NewRedisSeenCache(ctx, cfg.RedisAddr, cfg.SeenTTL)
		if err != nil {
			log.Warn().Err(err).Msg("seen cache disabled")
		} else {
			defer cache.Close()
			seenCache = cache
		}
	}

	if cfg.TelegramBotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return 1, fmt.Errorf("failed to create bot: %w", err)
		}
		reporters = append(reporters, notifier.New(botAPI, cfg.TelegramChannelID, opts.Serve, log))
	}

	orch := orchestrator.New(
		sources,
		fetcher.New(cfg.RequestTimeout, cfg.UserAgent, policy, log),
		parser.New(cfg.MinBodyLength),
		relevance.NewFilter(cfg.Keywords, classifier, log),
		articleStorage,
		seenCache,
		orchestrator.Options{
			MaxArticlesPerSource: cfg.MaxArticlesPerSource,
			MaxArticlesTotal:     cfg.MaxArticlesTotal,
			DaysFilter:           cfg.DaysFilter,
			Workers:              cfg.Workers,
			RunInterval:          cfg.RunInterval,
		},
		log,
		reporters...,
	)

	if !opts.Serve {
		summary := orch.Run(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary.Report()); err != nil {
			return 1, err
		}

		if summary.Failed {
			return 1, nil
		}
		return 0, nil
	}

	trigger := func() (string, bool) { return orch.Trigger(ctx) }

	var wg sync.WaitGroup

	// Воркер оркестратора
	wg.Add(1)
	go func() {
		defer wg.Done()
		stopped(log, "orchestrator", orch.Start(ctx))
	}()

	// Дашборд
	wg.Add(1)
	go func() {
		defer wg.Done()
		server := api.NewServer(api.NewHandler(articleStorage, runStorage, db, trigger), cfg.APIAccessKey, log)
		stopped(log, "http server", api.Serve(ctx, cfg.HTTPAddr, server, log))
	}()

	// Бот
	if botAPI != nil {
		newsBot := botkit.New(botAPI, log)
		newsBot.RegisterCmdView("start", bot.ViewCmdStart())
		newsBot.RegisterCmdView("stats", bot.ViewCmdStats(articleStorage, runStorage))
		newsBot.RegisterCmdView("latest", bot.ViewCmdLatest(articleStorage))
		newsBot.RegisterCmdView(
			"run",
			middleware.AdminOnly(cfg.TelegramChannelID, bot.ViewCmdRun(trigger)),
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			stopped(log, "bot", newsBot.Run(ctx))
		}()
	}

	wg.Wait()
	// Прогон, запущенный из бота или API, дописывает статьи до закрытия БД
	orch.Wait()

	return 0, nil
}

func stopped(log zerolog.Logger, name string, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("worker", name).Msg("worker failed")
		return
	}
	log.Info().Str("worker", name).Msg("worker stopped")
}
