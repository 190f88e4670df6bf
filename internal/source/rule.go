package source

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Способ получить список статей источника
type ListingKind string

const (
	// HTML страница со ссылками на статьи
	ListingHTML ListingKind = "html"
	// RSS/Atom лента
	ListingRSS ListingKind = "rss"
	// Статьи с числовыми ID: находим самый свежий ID на листинге и идем вниз
	ListingSequential ListingKind = "sequential"
)

// Правила работы с одним сайтом
type Rule struct {
	Name string      `yaml:"name"`
	Kind ListingKind `yaml:"kind"`
	// Страница листинга или адрес RSS ленты
	ListingURL string `yaml:"listing_url"`
	// CSS селектор ссылок на статьи (для html)
	LinkSelector string `yaml:"link_selector"`
	// Регулярка, которой должна соответствовать ссылка на статью.
	// Для sequential первая группа - числовой ID статьи
	LinkPattern string `yaml:"link_pattern"`
	// Шаблон URL статьи по ID, например https://www.theblockbeats.info/flash/%d
	ArticleURLTemplate string `yaml:"article_url_template"`
	// Сколько ID просматривать вниз от самого свежего
	Window int `yaml:"window"`

	TitleSelectors  []string `yaml:"title_selectors"`
	BodySelectors   []string `yaml:"body_selectors"`
	DateSelectors   []string `yaml:"date_selectors"`
	RemoveSelectors []string `yaml:"remove_selectors"`
	// Текст до этого маркера отбрасывается
	StartMarkers []string `yaml:"start_markers"`
	// Текст начиная с этого маркера отрезается (футеры, "AI 解读", "原文链接")
	EndMarkers []string `yaml:"end_markers"`
}

// Маркеры, которые не должны попадать в текст ни для одного источника
var commonEndMarkers = []string{"AI 解读", "AI解读", "原文链接", "展开全文", "展开", "免责声明", "风险提示"}

// Встроенные правила для известных источников
func Builtin() []Rule {
	return []Rule{
		{
			Name:               "BlockBeats",
			Kind:               ListingSequential,
			ListingURL:         "https://www.theblockbeats.info/newsflash",
			LinkPattern:        `/flash/(\d+)`,
			ArticleURLTemplate: "https://www.theblockbeats.info/flash/%d",
			Window:             50,
			TitleSelectors:     []string{".flash-title", "h1"},
			BodySelectors:      []string{".flash-top", ".news-flash-content", ".flash-content", "article"},
			DateSelectors:      []string{".flash-time", ".news-flash-time"},
			RemoveSelectors:    []string{".flash-share", ".ai-interpret"},
			StartMarkers:       []string{"BlockBeats 消息", "BlockBeats消息"},
			EndMarkers:         commonEndMarkers,
		},
		{
			Name:            "Jinse",
			Kind:            ListingHTML,
			ListingURL:      "https://www.jinse.cn/lives",
			LinkSelector:    "a[href*='/lives/']",
			LinkPattern:     `/lives/\d+\.html`,
			TitleSelectors:  []string{".js-lives__detail h1", ".lives-title", "h1"},
			BodySelectors:   []string{".js-lives__detail .content", ".lives-content", ".js-article-detail", ".content"},
			DateSelectors:   []string{".time", ".js-lives__date"},
			RemoveSelectors: []string{".share", ".js-share", ".lives-more"},
			StartMarkers:    []string{"金色财经报道"},
			EndMarkers:      commonEndMarkers,
		},
		{
			Name:            "PANews",
			Kind:            ListingHTML,
			ListingURL:      "https://www.panewslab.com/zh/newsflash",
			LinkSelector:    "a[href*='/articledetails/'], a[href*='/newsflash/']",
			LinkPattern:     `/(articledetails|newsflash)/[A-Za-z0-9]+`,
			TitleSelectors:  []string{".news-title", "h1"},
			BodySelectors:   []string{".news-content", ".article-content", "article"},
			DateSelectors:   []string{".news-time", "time"},
			RemoveSelectors: []string{".share-box", ".related"},
			StartMarkers:    []string{"PANews 消息", "PANews消息"},
			EndMarkers:      commonEndMarkers,
		},
	}
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("source rule without name")
	}
	if r.ListingURL == "" {
		return fmt.Errorf("source %s: listing_url is required", r.Name)
	}

	switch r.Kind {
	case ListingHTML, ListingRSS:
	case ListingSequential:
		if r.LinkPattern == "" || r.ArticleURLTemplate == "" {
			return fmt.Errorf("source %s: sequential listing needs link_pattern and article_url_template", r.Name)
		}
	default:
		return fmt.Errorf("source %s: unknown listing kind %q", r.Name, r.Kind)
	}

	return nil
}

type rulesFile struct {
	Sources []Rule `yaml:"sources"`
}

// Читает правила из YAML файла и накладывает их на встроенные.
// Правило с тем же именем заменяет встроенное целиком
func LoadRules(path string) ([]Rule, error) {
	rules := Builtin()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source rules: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse source rules %s: %w", path, err)
	}

	for _, custom := range file.Sources {
		if err := custom.Validate(); err != nil {
			return nil, err
		}

		replaced := false
		for i := range rules {
			if strings.EqualFold(rules[i].Name, custom.Name) {
				rules[i] = custom
				replaced = true
				break
			}
		}
		if !replaced {
			rules = append(rules, custom)
		}
	}

	return rules, nil
}

// Выбирает правила для источников из конфига в том порядке, в котором они перечислены
func Select(rules []Rule, names []string) ([]Rule, error) {
	if len(names) == 0 {
		return rules, nil
	}

	selected := make([]Rule, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		found := false
		for _, rule := range rules {
			if strings.EqualFold(rule.Name, name) {
				selected = append(selected, rule)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}

	return selected, nil
}
