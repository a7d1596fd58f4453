package service

import (
	"html"
	"strings"

	"doubtiq-go/internal/model"

	"github.com/microcosm-cc/bluemonday"
)

const (
	titleRunes    = 30
	maxTitleRunes = 255
)

var titlePolicy = bluemonday.StrictPolicy()

// sanitizeTitle strips markup and surrounding whitespace. Only user-chosen
// titles go through it; derived titles keep the message text as typed.
func sanitizeTitle(s string) string {
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(s)))
}

// deriveTitle builds a chat title from the first message, falling back to
// the attachment name and then to the default title.
func deriveTitle(text, fileName string) string {
	for _, source := range []string{text, fileName} {
		if trimmed := strings.TrimSpace(source); trimmed != "" {
			return truncateTitle(trimmed)
		}
	}
	return model.DefaultChatTitle
}

// truncateTitle keeps the first 30 characters and marks the cut with "...".
func truncateTitle(s string) string {
	if len([]rune(s)) <= titleRunes {
		return s
	}
	return truncateRunes(s, titleRunes) + "..."
}
