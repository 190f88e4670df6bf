package dedup

import (
	"fmt"
	"net/url"
	"strings"
)

// Параметры, которые не меняют содержимое страницы
var trackingParams = map[string]struct{}{
	"spm":         {},
	"from":        {},
	"ref":         {},
	"fbclid":      {},
	"gclid":       {},
	"share_token": {},
}

// Приводит URL к каноническому виду: схема и хост в нижнем регистре, без порта
// по умолчанию, фрагмента, завершающего слэша и трекинговых параметров.
// Оставшиеся параметры сортируются
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: scheme and host are required", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	query := u.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if _, ok := trackingParams[lower]; ok || strings.HasPrefix(lower, "utm_") {
			query.Del(key)
		}
	}
	// Encode сортирует ключи
	u.RawQuery = query.Encode()

	return u.String(), nil
}
