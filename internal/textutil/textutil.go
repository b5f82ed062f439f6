// Package textutil has text cleanup helpers shared by the ingestion
// pipeline and the presentation layer.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
)

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	specialCharsRe = regexp.MustCompile(`[^\w\s\-.,!?:;"'()]`)
	ellipsisRe     = regexp.MustCompile(`[.]{3,}`)
	quotesRe       = regexp.MustCompile(`["']{2,}`)
)

// CleanText normalizes whitespace and strips characters that interfere
// with chunking and embedding.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = specialCharsRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = ellipsisRe.ReplaceAllString(text, "...")
	text = quotesRe.ReplaceAllString(text, `"`)

	return strings.TrimSpace(text)
}

// FormatSourceReference renders chunk metadata as a readable citation.
func FormatSourceReference(meta entities.Metadata) string {
	source := meta.GetString("source")
	if source == "" {
		source = "Unknown"
	}
	title := meta.GetString("title")

	if title != "" && title != source {
		return title + " (" + source + ")"
	}
	return source
}

// TruncateText shortens text to maxLength bytes, preferring a word
// boundary when one falls reasonably close to the limit.
func TruncateText(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}

	truncated := text[:maxLength]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > maxLength*8/10 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}

// IsMeaningfulContent reports whether text is worth ingesting: long enough
// and not mostly punctuation.
func IsMeaningfulContent(text string, minLength int) bool {
	if len(strings.TrimSpace(text)) < minLength {
		return false
	}

	alnum, total := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return alnum*10 >= total*3
}
