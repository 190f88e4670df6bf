package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/source"
)

const DefaultMinBodyLength = 50

// Узлы, которые никогда не бывают частью текста статьи
const noiseSelector = "script, style, nav, footer, noscript, iframe, form"

// Страница загрузилась, но статьи на ней нет. Повторять такую загрузку бессмысленно
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

type Parser struct {
	minBodyLength int
	now           func() time.Time
}

func New(minBodyLength int) *Parser {
	if minBodyLength <= 0 {
		minBodyLength = DefaultMinBodyLength
	}

	return &Parser{
		minBodyLength: minBodyLength,
		now:           time.Now,
	}
}

// Извлекает статью со страницы по правилам источника.
// ScrapedAt не заполняется: его проставляет оркестратор
func (p *Parser) Parse(raw []byte, pageURL string, rule source.Rule) (model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return model.Article{}, &ParseError{URL: pageURL, Reason: err.Error()}
	}

	title := extractTitle(doc, rule.TitleSelectors)
	if title == "" {
		return model.Article{}, &ParseError{URL: pageURL, Reason: "title not found"}
	}

	body := extractBody(doc, rule)
	if body == "" {
		body = readabilityText(raw, pageURL)
	}
	body = TrimMarkers(body, rule.StartMarkers, rule.EndMarkers)

	if n := utf8.RuneCountInString(body); n < p.minBodyLength {
		return model.Article{}, &ParseError{
			URL:    pageURL,
			Reason: fmt.Sprintf("body too short: %d < %d", n, p.minBodyLength),
		}
	}

	article := model.Article{
		URL:      pageURL,
		Title:    title,
		BodyText: body,
		Source:   rule.Name,
	}

	now := p.now()
	if date, ok := ExtractDate(dateText(doc, rule.DateSelectors), now); ok {
		article.PublishedAt = &date
		article.PublishedAtFromMarkup = true
	} else if date, ok := ExtractDate(title+"\n"+body, now); ok {
		article.PublishedAt = &date
	}

	return article, nil
}

// Заголовок: сначала селекторы источника, потом общие варианты
func extractTitle(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := normalizeSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}

	if text := normalizeSpace(doc.Find("h1").First().Text()); text != "" {
		return text
	}

	if content, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if text := normalizeSpace(content); text != "" {
			return text
		}
	}

	return normalizeSpace(doc.Find("title").First().Text())
}

func extractBody(doc *goquery.Document, rule source.Rule) string {
	for _, sel := range rule.BodySelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}

		container.Find(noiseSelector).Remove()
		for _, remove := range rule.RemoveSelectors {
			container.Find(remove).Remove()
		}

		if text := blockText(container); text != "" {
			return text
		}
	}

	return ""
}

// Текст контейнера по абзацам. Если абзацев нет, берем весь текст целиком
func blockText(sel *goquery.Selection) string {
	var lines []string
	sel.Find("p, li, h2, h3, h4, blockquote").Each(func(_ int, block *goquery.Selection) {
		// Вложенные блоки уже попадут в текст родителя
		if block.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		if text := normalizeSpace(block.Text()); text != "" {
			lines = append(lines, text)
		}
	})

	if len(lines) == 0 {
		return normalizeSpace(sel.Text())
	}

	return strings.Join(lines, "\n")
}

// Запасной вариант, когда ни один селектор не сработал
func readabilityText(raw []byte, pageURL string) string {
	u, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		return ""
	}

	var lines []string
	for _, line := range strings.Split(article.TextContent, "\n") {
		if line = normalizeSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

func dateText(doc *goquery.Document, selectors []string) string {
	var parts []string
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if dt, ok := s.Attr("datetime"); ok {
				parts = append(parts, dt)
			}
			parts = append(parts, s.Text())
		})
	}
	return strings.Join(parts, " ")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
