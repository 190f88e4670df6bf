package model

import "time"

// Счетчики одного источника за прогон
type SourceSummary struct {
	Source        string `json:"source"`
	Found         int    `json:"found"`
	Stored        int    `json:"stored"`
	Duplicate     int    `json:"duplicate"`
	Skipped       int    `json:"skipped"`
	ParseFailed   int    `json:"parse_failed"`
	FetchFailed   int    `json:"fetch_failed"`
	PersistFailed int    `json:"persist_failed"`
	// Не удалось получить листинг источника
	ListingFailed bool `json:"listing_failed"`
	// Сработал лимит статей на источник или общий лимит
	CapReached bool `json:"cap_reached"`
}

func (s SourceSummary) Failed() int {
	return s.ParseFailed + s.FetchFailed + s.PersistFailed
}

// Итог одного прогона пайплайна
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time

	Found         int
	Stored        int
	Duplicate     int
	Skipped       int
	ParseFailed   int
	FetchFailed   int
	PersistFailed int

	// Прогон целиком неуспешен: не открылся ни один листинг или не удалась ни одна запись в БД
	Failed  bool
	Errors  []string
	Sources []SourceSummary
}

// Добавляет счетчики источника к общим
func (s *RunSummary) Add(src SourceSummary) {
	s.Found += src.Found
	s.Stored += src.Stored
	s.Duplicate += src.Duplicate
	s.Skipped += src.Skipped
	s.ParseFailed += src.ParseFailed
	s.FetchFailed += src.FetchFailed
	s.PersistFailed += src.PersistFailed
	s.Sources = append(s.Sources, src)
}

func (s RunSummary) FailedCount() int {
	return s.ParseFailed + s.FetchFailed + s.PersistFailed
}

func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Отчет о прогоне, который отдаем наружу (CLI, API)
type RunReport struct {
	RunID             string          `json:"run_id"`
	ArticlesFound     int             `json:"articles_found"`
	ArticlesStored    int             `json:"articles_stored"`
	ArticlesDuplicate int             `json:"articles_duplicate"`
	ArticlesFailed    int             `json:"articles_failed"`
	ArticlesSkipped   int             `json:"articles_skipped"`
	DurationSeconds   float64         `json:"duration_seconds"`
	Failed            bool            `json:"failed"`
	Errors            []string        `json:"errors"`
	Sources           []SourceSummary `json:"sources,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
}

func (s RunSummary) Report() RunReport {
	errs := s.Errors
	if errs == nil {
		errs = []string{}
	}

	return RunReport{
		RunID:             s.ID,
		ArticlesFound:     s.Found,
		ArticlesStored:    s.Stored,
		ArticlesDuplicate: s.Duplicate,
		ArticlesFailed:    s.FailedCount(),
		ArticlesSkipped:   s.Skipped,
		DurationSeconds:   s.Duration().Seconds(),
		Failed:            s.Failed,
		Errors:            errs,
		Sources:           s.Sources,
		StartedAt:         s.StartedAt,
	}
}
