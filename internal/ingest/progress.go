package ingest

import (
	"fmt"
	"strings"
	"time"
)

const progressBarWidth = 10

// progressLine renders an upload progress line:
//
//	[███░░░░░░░] 30.0% (3/10) • 12s прошло • ~28s осталось
func progressLine(processed, total int, elapsed time.Duration) string {
	if total <= 0 {
		return ""
	}

	ratio := float64(processed) / float64(total)
	filled := int(ratio * progressBarWidth)
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)

	line := fmt.Sprintf("[%s] %.1f%% (%d/%d)", bar, ratio*100, processed, total)

	elapsed = elapsed.Round(time.Second)
	line += fmt.Sprintf(" • %s прошло", formatDuration(elapsed))

	if processed > 0 && processed < total {
		perFile := elapsed / time.Duration(processed)
		remaining := (perFile * time.Duration(total-processed)).Round(time.Second)
		line += fmt.Sprintf(" • ~%s осталось", formatDuration(remaining))
	}
	return line
}

func formatDuration(d time.Duration) string {
	if d >= time.Minute {
		return fmt.Sprintf("%dм %dс", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dс", int(d.Seconds()))
}
