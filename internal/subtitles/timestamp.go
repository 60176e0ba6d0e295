package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxTimestampSeconds bounds what formatTime renders; beyond it the value is
// not a real media offset and int64 milliseconds would overflow.
const maxTimestampSeconds = 1e12

// FormatSRTTime renders seconds as HH:MM:SS,mmm.
func FormatSRTTime(seconds float64) string {
	return formatTime(seconds, ',')
}

// FormatVTTTime renders seconds as HH:MM:SS.mmm.
func FormatVTTTime(seconds float64) string {
	return formatTime(seconds, '.')
}

// formatTime truncates to whole milliseconds and splits without carry. Hours
// are not wrapped at 24. Negative, NaN, infinite and out-of-range inputs
// render as zero.
func formatTime(seconds float64, sep byte) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 || seconds > maxTimestampSeconds {
		seconds = 0
	}
	whole := math.Floor(seconds)
	millis := int64(math.Floor((seconds-whole)*1000 + millisSlack(seconds)))
	if millis > 999 {
		millis = 999
	}
	total := int64(whole)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, sep, millis)
}

// millisSlack absorbs the binary representation error of seconds so 1.2s
// lands on 200ms, not 199ms. It is far below a millisecond, so values just
// under a millisecond boundary still truncate down.
func millisSlack(seconds float64) float64 {
	ulp := math.Nextafter(seconds, math.Inf(1)) - seconds
	return 1e-9 + ulp*1000
}

// ParseTimestamp reads an SRT or VTT timestamp back into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Normalize period to comma (SRT standard uses comma for milliseconds)
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}
