package textutil

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	lineSplitRe = regexp.MustCompile(`[\r\n]+`)
	titleCaser  = cases.Title(language.English)
)

// StripMarkup removes HTML tags, decodes entities, and trims surrounding whitespace.
func StripMarkup(value string) string {
	if value == "" {
		return ""
	}
	stripped := stripPolicy.Sanitize(value)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// FlattenLines splits the value on line breaks, trims each line, and drops empty ones.
func FlattenLines(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := lineSplitRe.Split(value, -1)
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}

// TitleKey converts machine keys such as "tracking_number" into human readable labels.
func TitleKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(key)
	return titleCaser.String(replaced)
}
