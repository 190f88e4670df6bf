package storage

import (
	"fmt"
	"strings"
	"time"
)

// Условия выборки статей. Пустые поля не участвуют
type ArticleFilter struct {
	Source string
	// Дата публикации (или сбора, если даты нет) не раньше
	Since *time.Time
	// и не позже
	Until *time.Time
	// Статья должна содержать это ключевое слово в matched_keywords
	Keyword string
	// Подстрока в заголовке
	Search string
}

type Order string

const (
	OrderPublishedDesc Order = "published_desc"
	OrderScrapedDesc   Order = "scraped_desc"
	OrderScrapedAsc    Order = "scraped_asc"
)

func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case "":
		return OrderPublishedDesc, nil
	case OrderPublishedDesc, OrderScrapedDesc, OrderScrapedAsc:
		return o, nil
	default:
		return "", fmt.Errorf("unknown order %q", s)
	}
}

func (o Order) clause() string {
	switch o {
	case OrderScrapedDesc:
		return "scraped_at DESC, id DESC"
	case OrderScrapedAsc:
		return "scraped_at ASC, id ASC"
	default:
		return "COALESCE(publication_date, scraped_at) DESC, id DESC"
	}
}

// Собирает WHERE с позиционными параметрами начиная с $1
func (f ArticleFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.Since != nil {
		add("COALESCE(publication_date, scraped_at) >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("COALESCE(publication_date, scraped_at) < $%d", *f.Until)
	}
	if f.Keyword != "" {
		add("$%d = ANY(matched_keywords)", f.Keyword)
	}
	if f.Search != "" {
		add("title ILIKE $%d", "%"+escapeLike(f.Search)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
