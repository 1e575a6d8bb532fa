package indexer

import "strings"

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Preprocess normalizes line endings so chunk offsets are stable across platforms.
func Preprocess(text string) string {
	if !strings.ContainsRune(text, '\r') {
		return text
	}
	return lineEndings.Replace(text)
}
