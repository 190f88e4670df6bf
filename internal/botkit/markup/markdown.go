package markup

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

var replacer = strings.NewReplacer(
	"\\", "\\\\",
	"-", "\\-",
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// Экранирует спецсимволы MarkdownV2 телеграма
func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}

// Внутри блока кода экранируются только ` и \
var codeReplacer = strings.NewReplacer("\\", "\\\\", "`", "\\`")

func EscapeForCode(src string) string {
	return codeReplacer.Replace(src)
}

// Обрезает строку по ширине на экране: китайский иероглиф занимает две колонки
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

// Дополняет строку пробелами до нужной ширины, чтобы колонки в моноширинном блоке совпадали
func Pad(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
