package audit

import (
	"fmt"
	"math"
	"time"
)

// nbsp keeps a number and its unit on one line.
const nbsp = "\u00a0"

// FormatKB renders bytes as whole kibibytes, e.g. "22 KB" with a
// non-breaking space.
func FormatKB(bytes int64) string {
	return fmt.Sprintf("%d%sKB", roundKB(bytes), nbsp)
}

func roundKB(bytes int64) int64 {
	return int64(math.Round(float64(bytes) / 1024))
}

// FormatMs renders a duration in milliseconds, e.g. "950 ms".
func FormatMs(ms float64) string {
	return fmt.Sprintf("%d%sms", int64(math.Round(ms)), nbsp)
}

// WastedPercent returns round(wasted/total × 100), or 0 without a total.
func WastedPercent(wasted, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(wasted) / float64(total) * 100))
}

// PotentialSavings renders "<wasted KB> (<percent>%)".
func PotentialSavings(wasted, total int64) string {
	return fmt.Sprintf("%s (%d%%)", FormatKB(wasted), WastedPercent(wasted, total))
}

// roundTo10Ms rounds a saving to the nearest 10 ms.
func roundTo10Ms(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms/10) * 10
}
