package search

import (
	"strings"

	"github.com/hyperjump/medqa/pkg/utils"
)

// SnippetLength is the length of source previews shown to users.
const SnippetLength = 200

// Highlight collapses whitespace in content and truncates it to maxLen runes.
func Highlight(content string, maxLen int) string {
	flat := strings.Join(strings.Fields(content), " ")
	if maxLen <= 0 {
		return flat
	}
	return utils.Truncate(flat, maxLen)
}
