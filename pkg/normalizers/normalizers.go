// Package normalizers provides name normalization for match comparison
package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("ndisplay", NormalizeDisplayName)
	Register("strip_accents", StripAccents)
	Register("remove_whitespace", RemoveWhitespace)
	Register("slug", Slugify)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripAccents removes diacritics (e.g. "Müller" -> "Muller")
func StripAccents(s string) string {
	result, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return result
}

// NormalizeDisplayName canonicalizes a display name for comparison:
// Unicode-decomposed with combining marks stripped, lowercased, trimmed.
// Total - empty input yields empty output.
func NormalizeDisplayName(s string) string {
	return strings.TrimSpace(strings.ToLower(StripAccents(s)))
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Slugify derives the stored slug for a ratings entry (lowercase, runs of
// whitespace collapsed to a single dash)
func Slugify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// LastToken returns the final whitespace-separated token of a normalized name.
// Used as the surname heuristic for scoped exact matching ("L. Messi" -> "messi").
func LastToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
