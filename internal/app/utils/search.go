package utils

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/go-loongo/internal/app/models"
)

const maxSearchQueryLength = 100

// NormalizeSearchQuery prepares user input for a case-insensitive substring
// match: NFKC, lower-cased, inner whitespace collapsed. Empty input is a
// validation error.
func NormalizeSearchQuery(query string) (string, error) {
	q := strings.Join(strings.FieldsFunc(norm.NFKC.String(query), unicode.IsSpace), " ")
	if q == "" {
		return "", fmt.Errorf("search query is empty: %w", models.ErrValidation)
	}
	if len([]rune(q)) > maxSearchQueryLength {
		return "", fmt.Errorf("search query longer than %d characters: %w", maxSearchQueryLength, models.ErrValidation)
	}
	return cases.Lower(language.Und).String(q), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns a normalized query into an ILIKE pattern with the
// wildcards in the query escaped.
func ContainsPattern(normalized string) string {
	return "%" + likeEscaper.Replace(normalized) + "%"
}
