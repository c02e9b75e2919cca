package dialogue

import (
	"regexp"
	"strings"
)

var (
	openMarker  = regexp.MustCompile(`(?i)\[suggestions\]`)
	closeMarker = regexp.MustCompile(`(?i)\[/suggestions\]`)
	enumPrefix  = regexp.MustCompile(`^\s*[\d.\-*]+\s*`)
	productRef  = regexp.MustCompile(`<!--\s*ID:\s*([A-Za-z0-9_-]+)\s*-->`)
)

// ParseResponse splits composed text into the main content and the trailing
// quick-reply suggestions. A missing closing marker is tolerated: the
// suggestions then run to the end of the text.
func ParseResponse(text string) (string, []string) {
	open := openMarker.FindStringIndex(text)
	if open == nil {
		return text, nil
	}

	main := strings.TrimSpace(text[:open[0]])
	region := text[open[1]:]
	if end := closeMarker.FindStringIndex(region); end != nil {
		region = region[:end[0]]
	}
	region = openMarker.ReplaceAllString(region, "")
	region = closeMarker.ReplaceAllString(region, "")

	var suggestions []string
	for _, line := range strings.Split(region, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(enumPrefix.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
	}
	return main, suggestions
}

// ExtractProductIDs returns the product markers in the text, first
// occurrence order, without duplicates.
func ExtractProductIDs(text string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range productRef.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}
