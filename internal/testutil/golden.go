package testutil

import (
	"regexp"
	"strings"
)

var (
	timestampRe = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[^\s"]*`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`),
		regexp.MustCompile(`\d{2}:\d{2}:\d{2}`),
	}
	durationRe = regexp.MustCompile(`\b\d+(\.\d+)?(ns|us|µs|ms|s|m|h)+\b`)
	uuidRe     = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// Normalize normalizes output for comparison.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// ScrubTimestamps replaces timestamps with [TIMESTAMP].
func ScrubTimestamps(s string) string {
	for _, re := range timestampRe {
		s = re.ReplaceAllString(s, "[TIMESTAMP]")
	}
	return s
}

// ScrubDurations replaces durations like 1.2s or 5m30s with [DURATION].
func ScrubDurations(s string) string {
	return durationRe.ReplaceAllString(s, "[DURATION]")
}

// ScrubUUIDs replaces execution and request ids with [UUID].
func ScrubUUIDs(s string) string {
	return uuidRe.ReplaceAllString(s, "[UUID]")
}

// ScrubAll applies every scrubber and normalizes the result.
func ScrubAll(s string) string {
	return Normalize(ScrubDurations(ScrubTimestamps(ScrubUUIDs(s))))
}
