package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Обрезает текст по маркерам.
// Все, что до первого стартового маркера, отбрасывается (сам маркер остается).
// Все, начиная с самого раннего конечного маркера, отрезается
func TrimMarkers(text string, startMarkers, endMarkers []string) string {
	start := -1
	for _, marker := range startMarkers {
		if marker == "" {
			continue
		}
		if idx := strings.Index(text, marker); idx >= 0 && (start < 0 || idx < start) {
			start = idx
		}
	}
	if start > 0 {
		text = text[start:]
	}

	end := -1
	for _, marker := range endMarkers {
		if marker == "" {
			continue
		}
		if idx := strings.Index(text, marker); idx >= 0 && (end < 0 || idx < end) {
			end = idx
		}
	}
	if end >= 0 {
		text = text[:end]
	}

	return strings.TrimSpace(text)
}

var (
	fullDatePattern = regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	isoDatePattern  = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	monthDayPattern = regexp.MustCompile(`(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
)

// Ищет в тексте дату публикации. Если подходящего шаблона нет, даты нет:
// никаких догадок. Берется самая ранняя дата в тексте: у флешей это строка
// с датой в начале, а даты дальше по тексту относятся к пересказу событий.
// "N月N日" относится к текущему году, а если такая дата еще не наступила
// или не существует (2月29日) - к прошлому
func ExtractDate(text string, now time.Time) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}

	var (
		best     []string
		bestPos  = -1
		withYear bool
	)
	for _, pattern := range []*regexp.Regexp{fullDatePattern, isoDatePattern, monthDayPattern} {
		idx := pattern.FindStringSubmatchIndex(text)
		if idx == nil || (bestPos >= 0 && idx[0] >= bestPos) {
			continue
		}

		best = best[:0]
		for i := 2; i < len(idx); i += 2 {
			best = append(best, text[idx[i]:idx[i+1]])
		}
		bestPos = idx[0]
		withYear = pattern != monthDayPattern
	}

	if bestPos < 0 {
		return time.Time{}, false
	}

	loc := now.Location()

	// Полная дата из будущего - мусор в разметке, а не повод угадывать год
	if withYear {
		date, ok := makeDate(best[0], best[1], best[2], loc)
		if !ok || date.After(now) {
			return time.Time{}, false
		}
		return date, true
	}

	date, ok := makeDate(strconv.Itoa(now.Year()), best[0], best[1], loc)
	if !ok || date.After(now) {
		date, ok = makeDate(strconv.Itoa(now.Year()-1), best[0], best[1], loc)
	}
	if !ok || date.After(now) {
		return time.Time{}, false
	}
	return date, true
}

func makeDate(year, month, day string, loc *time.Location) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}

	date := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	// 2月30日 и подобное time.Date молча переносит на следующий месяц
	if date.Day() != d {
		return time.Time{}, false
	}

	return date, true
}
