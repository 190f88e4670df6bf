package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// Источник со страницей-листингом в HTML
type HTMLSource struct {
	rule    Rule
	pattern *regexp.Regexp
}

func (s HTMLSource) Name() string { return s.rule.Name }
func (s HTMLSource) Rule() Rule   { return s.rule }

func (s HTMLSource) Listing(ctx context.Context, fetcher PageFetcher) ([]string, error) {
	raw, err := fetcher.Fetch(ctx, s.rule.ListingURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("source %s: failed to parse listing: %w", s.rule.Name, err)
	}

	selector := s.rule.LinkSelector
	if selector == "" {
		selector = "a[href]"
	}

	var links []string
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}

		link := resolveURL(s.rule.ListingURL, href)
		if link == "" {
			return
		}

		if s.pattern != nil && !s.pattern.MatchString(link) {
			return
		}

		links = append(links, link)
	})

	// Одна и та же статья часто встречается на листинге несколько раз (заголовок, картинка)
	return lo.Uniq(links), nil
}
