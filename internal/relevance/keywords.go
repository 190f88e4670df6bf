package relevance

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Приводит текст к виду для сравнения: полноширинные символы (ＢＴＣ) к обычным,
// регистр складывается по правилам Unicode
func fold(s string) string {
	return cases.Fold().String(width.Fold.String(s))
}

// Возвращает ключевые слова, найденные в тексте, в порядке конфига и без повторов.
// Сравнение без учета регистра и без границ слов: в китайском тексте их нет
func MatchKeywords(text string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}

	folded := fold(text)

	var (
		matched []string
		seen    = make(map[string]struct{}, len(keywords))
	)
	for _, keyword := range keywords {
		k := fold(strings.TrimSpace(keyword))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}

		if strings.Contains(folded, k) {
			seen[k] = struct{}{}
			matched = append(matched, keyword)
		}
	}

	return matched
}
