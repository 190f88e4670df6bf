package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Загрузчик страниц, которым пользуются листинги
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Источник новостей
type Source interface {
	Name() string
	Rule() Rule
	// Ссылки на статьи в порядке листинга (для sequential - по убыванию ID)
	Listing(ctx context.Context, fetcher PageFetcher) ([]string, error)
}

// Создает источник по правилу
func New(rule Rule) (Source, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	var (
		pattern *regexp.Regexp
		err     error
	)
	if rule.LinkPattern != "" {
		pattern, err = regexp.Compile(rule.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("source %s: invalid link_pattern: %w", rule.Name, err)
		}
	}

	switch rule.Kind {
	case ListingRSS:
		return NewRSSSourceFromRule(rule, pattern), nil
	case ListingSequential:
		if pattern.NumSubexp() < 1 {
			return nil, fmt.Errorf("source %s: link_pattern must capture the article id", rule.Name)
		}
		return SequentialSource{rule: rule, pattern: pattern}, nil
	default:
		return HTMLSource{rule: rule, pattern: pattern}, nil
	}
}

// Создает источники для всех правил
func NewAll(rules []Rule) ([]Source, error) {
	sources := make([]Source, 0, len(rules))
	for _, rule := range rules {
		src, err := New(rule)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// Превращает относительную ссылку в абсолютную
func resolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return base.ResolveReference(ref).String()
}
