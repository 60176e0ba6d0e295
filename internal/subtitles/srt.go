package subtitles

import (
	"math"
	"strings"
)

// CountCues counts timing lines in SRT or VTT content. Cues with empty text
// still count.
func CountCues(content string) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "-->") {
			count++
		}
	}
	return count
}

// Bounds returns the earliest cue start and latest cue end found in content.
// Unparseable timing lines are skipped.
func Bounds(content string) (float64, float64, bool) {
	first := math.Inf(1)
	var last float64
	found := false
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "-->") {
			continue
		}
		parts := strings.Split(line, "-->")
		if len(parts) != 2 {
			continue
		}
		if start, err := ParseTimestamp(parts[0]); err == nil {
			if start < first {
				first = start
			}
			found = true
		}
		if end, err := ParseTimestamp(parts[1]); err == nil && end > last {
			last = end
		}
	}
	if !found {
		return 0, last, false
	}
	return first, last, true
}
