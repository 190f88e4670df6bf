package source

import (
	"context"
	"fmt"
	"regexp"

	"github.com/SlyMarbo/rss"
	"github.com/samber/lo"
)

// RSS клиент.
type RSSSource struct {
	rule    Rule
	pattern *regexp.Regexp
}

// Конструктор, который из правила создает источник как клиент для RSS лент
func NewRSSSourceFromRule(rule Rule, pattern *regexp.Regexp) RSSSource {
	return RSSSource{
		rule:    rule,
		pattern: pattern,
	}
}

func (s RSSSource) Name() string { return s.rule.Name }
func (s RSSSource) Rule() Rule   { return s.rule }

// Ссылки на статьи в порядке ленты.
// Ленту загружаем своим fetcher'ом, чтобы работали повторы и user agent
func (s RSSSource) Listing(ctx context.Context, fetcher PageFetcher) ([]string, error) {
	raw, err := fetcher.Fetch(ctx, s.rule.ListingURL)
	if err != nil {
		return nil, err
	}

	feed, err := rss.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("source %s: failed to parse feed: %w", s.rule.Name, err)
	}

	links := lo.FilterMap(feed.Items, func(item *rss.Item, _ int) (string, bool) {
		link := resolveURL(s.rule.ListingURL, item.Link)
		if link == "" {
			return "", false
		}
		if s.pattern != nil && !s.pattern.MatchString(link) {
			return "", false
		}
		return link, true
	})

	return lo.Uniq(links), nil
}
