package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var folder = cases.Fold()

// Fold lowercases the input using Unicode case folding, suitable for building
// search keys that survive locale-specific casing.
func Fold(value string) string {
	return folder.String(strings.TrimSpace(value))
}

// Title renders the input in title case for display synthesis.
func Title(value string) string {
	return cases.Title(language.English).String(strings.TrimSpace(value))
}

// Tokenize splits the input on any non-alphanumeric rune, folds each token and
// drops tokens shorter than minLen.
func Tokenize(value string, minLen int) []string {
	if minLen <= 0 {
		minLen = 1
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		folded := Fold(field)
		if len(folded) < minLen {
			continue
		}
		tokens = append(tokens, folded)
	}
	return tokens
}

// Dedupe removes duplicate and empty strings while preserving first-seen order.
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
