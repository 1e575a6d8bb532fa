package search

import (
	"strings"

	"github.com/hyperjump/medqa/internal/models"
)

// ProcessQuery trims the query and rejects it if nothing is left.
func ProcessQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", models.ErrEmptyQuery
	}
	return q, nil
}
