package relevance

import (
	"context"
	"errors"
	"fmt"

	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/rs/zerolog"
)

// Внешний сервис оценки релевантности недоступен или ответил мусором.
// Наружу из фильтра не выходит: вместо нее работает поиск по ключевым словам
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("relevance service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Ответ модели
type Judgment struct {
	Relevant bool
	Score    float64
}

// Классификатор на основе LLM
type Classifier interface {
	Classify(ctx context.Context, title, body string) (Judgment, error)
}

// Решение фильтра по статье
type Decision struct {
	Relevant bool
	// Найденные ключевые слова в порядке конфига
	Matched []string
	// Оценка модели, nil если решали ключевые слова
	Score *float64
	ViaAI bool
}

type Filter struct {
	keywords   []string
	classifier Classifier
	log        zerolog.Logger
}

// classifier может быть nil: тогда решают только ключевые слова
func NewFilter(keywords []string, classifier Classifier, log zerolog.Logger) *Filter {
	return &Filter{
		keywords:   keywords,
		classifier: classifier,
		log:        log.With().Str("component", "relevance").Logger(),
	}
}

// Никогда не возвращает ошибку: при сбое LLM решение принимается по ключевым словам
func (f *Filter) IsRelevant(ctx context.Context, article model.Article) Decision {
	matched := MatchKeywords(article.Title+"\n"+article.BodyText, f.keywords)

	if f.classifier != nil {
		judgment, err := f.classifier.Classify(ctx, article.Title, article.BodyText)
		if err == nil {
			score := judgment.Score
			return Decision{
				Relevant: judgment.Relevant,
				Matched:  matched,
				Score:    &score,
				ViaAI:    true,
			}
		}

		var serviceErr *ServiceError
		if !errors.As(err, &serviceErr) {
			err = &ServiceError{Op: "classify", Err: err}
		}
		f.log.Warn().Err(err).Str("url", article.URL).Msg("llm relevance failed, falling back to keywords")
	}

	// Ключевые слова не заданы - фильтр пропускает все, чтобы не потерять статьи из-за конфига
	if len(f.keywords) == 0 {
		return Decision{Relevant: true}
	}

	return Decision{
		Relevant: len(matched) > 0,
		Matched:  matched,
	}
}
