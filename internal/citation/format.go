package citation

import (
	"fmt"
	"sort"
	"strings"

	"deepresearch/internal/types"
)

// Style selects a bibliography format.
type Style string

const (
	StyleAPA     Style = "APA"
	StyleMLA     Style = "MLA"
	StyleChicago Style = "Chicago"
)

// Format renders one citation in the given style. Style matching is
// case-insensitive so config values like "mla" select the right format.
// Formatting is best effort: missing fields are simply omitted.
func Format(c types.Citation, style Style) string {
	authors := formatAuthors(c.Authors)
	year := extractYear(c.Date)

	switch Style(strings.ToLower(string(style))) {
	case "mla":
		parts := nonEmpty(authors, quoteTitle(c.Title), c.URL)
		return strings.Join(parts, ". ") + "."
	case "chicago":
		parts := nonEmpty(authors, quoteTitle(c.Title), year, c.URL)
		return strings.Join(parts, ". ") + "."
	default: // APA
		var parts []string
		if authors != "" {
			parts = append(parts, authors)
		}
		if year != "" {
			parts = append(parts, "("+year+")")
		}
		parts = append(parts, nonEmpty(c.Title, c.URL)...)
		return strings.Join(parts, ". ") + "."
	}
}

// Bibliography deduplicates citations by URL or lowercased title, sorts them
// alphabetically by title, and renders a numbered entry list.
func Bibliography(citations []types.Citation, style Style) []string {
	unique := dedupeForBibliography(citations)

	sort.SliceStable(unique, func(i, j int) bool {
		return strings.ToLower(unique[i].Title) < strings.ToLower(unique[j].Title)
	})

	entries := make([]string, 0, len(unique))
	for i, c := range unique {
		entries = append(entries, fmt.Sprintf("%d. %s", i+1, Format(c, style)))
	}
	return entries
}

// dedupeForBibliography keeps one citation per source: a repeated URL or a
// repeated lowercased title both mean the same source.
func dedupeForBibliography(citations []types.Citation) []types.Citation {
	seenURL := make(map[string]bool)
	seenTitle := make(map[string]bool)
	var unique []types.Citation
	for _, c := range citations {
		title := strings.ToLower(strings.TrimSpace(c.Title))
		if c.URL != "" && seenURL[c.URL] {
			continue
		}
		if title != "" && seenTitle[title] {
			continue
		}
		if c.URL != "" {
			seenURL[c.URL] = true
		}
		if title != "" {
			seenTitle[title] = true
		}
		unique = append(unique, c)
	}
	return unique
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0]
	case 2:
		return authors[0] + " and " + authors[1]
	default:
		return authors[0] + " et al."
	}
}

// extractYear pulls a four-digit year out of a date string.
func extractYear(date string) string {
	for i := 0; i+4 <= len(date); i++ {
		candidate := date[i : i+4]
		if candidate >= "1800" && candidate <= "2199" && isDigits(candidate) {
			return candidate
		}
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func quoteTitle(title string) string {
	if title == "" {
		return ""
	}
	return `"` + title + `"`
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
