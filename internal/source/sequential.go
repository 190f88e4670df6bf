package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

const defaultWindow = 50

// Источник, где у статей числовые ID (например /flash/{id}).
// Берем самый большой ID с листинга и перебираем ID вниз
type SequentialSource struct {
	rule    Rule
	pattern *regexp.Regexp
}

func (s SequentialSource) Name() string { return s.rule.Name }
func (s SequentialSource) Rule() Rule   { return s.rule }

func (s SequentialSource) Listing(ctx context.Context, fetcher PageFetcher) ([]string, error) {
	raw, err := fetcher.Fetch(ctx, s.rule.ListingURL)
	if err != nil {
		return nil, err
	}

	latest := s.latestID(raw)
	if latest <= 0 {
		return nil, fmt.Errorf("source %s: no article ids found on listing page", s.rule.Name)
	}

	window := s.rule.Window
	if window <= 0 {
		window = defaultWindow
	}

	links := make([]string, 0, window)
	for id := latest; id > 0 && id > latest-int64(window); id-- {
		links = append(links, fmt.Sprintf(s.rule.ArticleURLTemplate, id))
	}

	return links, nil
}

// Ищем ID прямо в сыром HTML: ссылки часто лежат в JSON внутри скриптов
func (s SequentialSource) latestID(raw []byte) int64 {
	var latest int64
	for _, m := range s.pattern.FindAllSubmatch(raw, -1) {
		id, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err != nil {
			continue
		}
		if id > latest {
			latest = id
		}
	}
	return latest
}
