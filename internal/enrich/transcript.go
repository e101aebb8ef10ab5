package enrich

import (
	"regexp"
	"strings"
)

var (
	timestampLine = regexp.MustCompile(`^\s*(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}\s*-->\s*(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}`)
	cueMarkup     = regexp.MustCompile(`<[^>]+>`)
	cueID         = regexp.MustCompile(`^\d+$`)
)

// normalizeTranscript turns a WEBVTT/SRT-formatted transcript into plain
// text: header, cue numbers, timestamp lines, and inline cue markup are
// dropped, remaining lines joined with single spaces. Input that carries no
// cue formatting passes through with whitespace collapsed.
func normalizeTranscript(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "WEBVTT") {
			continue
		}
		if strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "STYLE") {
			continue
		}
		if timestampLine.MatchString(trimmed) {
			continue
		}
		if cueID.MatchString(trimmed) {
			continue
		}
		trimmed = cueMarkup.ReplaceAllString(trimmed, "")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}
