package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Caption — структурированное описание вещи, сгенерированное моделью при наполнении каталога.
type Caption map[string]string

const (
	captionUpperCategory = "upper cloth category"
	captionLowerCategory = "lower cloth category"
	captionDressCategory = "dresses category"
)

// Title собирает заголовок из атрибутов описания:
// цвет, узор (кроме solid), материал, категория и уточнения в зависимости от типа вещи.
func (c Caption) Title() string {
	if len(c) == 0 {
		return ""
	}

	_, isUpper := c[captionUpperCategory]
	_, isLower := c[captionLowerCategory]
	_, isDress := c[captionDressCategory]

	var category string
	switch {
	case isUpper:
		category = c[captionUpperCategory]
	case isLower:
		category = c[captionLowerCategory]
	case isDress:
		category = c[captionDressCategory]
	}

	pattern := c["pattern"]
	if strings.EqualFold(pattern, "solid") {
		pattern = ""
	}

	neckline := strings.ToLower(c["neckline"])
	sleeve := strings.ToLower(c["sleeve"])
	length := strings.ToLower(c["length"])

	parts := []string{
		capitalize(c["color"]),
		capitalize(pattern),
		capitalize(c["material"]),
		capitalize(category),
	}

	switch {
	case isUpper:
		if neckline != "" {
			parts = append(parts, "with "+neckline+" neckline")
		}
		if sleeve != "" {
			parts = append(parts, "and "+sleeve+" sleeves")
		}
	case isLower:
		if length != "" {
			parts = append(parts, "("+length+" length)")
		}
	case isDress:
		if length != "" {
			parts = append(parts, "("+length+" length)")
		}
		if neckline != "" {
			parts = append(parts, "with "+neckline+" neckline")
		}
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	return strings.Join(nonEmpty, " ")
}

// capitalize: первая буква заглавная, остальные строчные.
func capitalize(s string) string {
	if s == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
