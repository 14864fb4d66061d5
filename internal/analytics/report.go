package analytics

import (
	"fmt"
	"strings"
)

// FormatGlobalReport renders global stats as a plain-text report suitable
// for a chat message.
func FormatGlobalReport(s *GlobalStats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 Статистика за %d дн.\n\n", s.Days)
	fmt.Fprintf(&b, "Пользователи: %d\n", s.TotalUsers)
	fmt.Fprintf(&b, "Диалоги: %d\n", s.TotalConversations)
	fmt.Fprintf(&b, "Сообщения: %d\n", s.TotalMessages)
	fmt.Fprintf(&b, "Ошибки: %.1f%%\n", s.ErrorRatePercent)
	fmt.Fprintf(&b, "Среднее время ответа: %.0f мс\n", s.AvgProcessingMs)

	if len(s.DailyActivity) > 0 {
		b.WriteString("\nПо дням:\n")
		for _, d := range s.DailyActivity {
			fmt.Fprintf(&b, "  %s — %d сообщ., %d польз.\n", d.Date, d.Messages, d.ActiveUsers)
		}
	}

	if hour, ok := peakHour(s.HourlyDistribution); ok {
		fmt.Fprintf(&b, "\nПик активности: %02d:00\n", hour)
	}

	return strings.TrimRight(b.String(), "\n")
}

func peakHour(buckets []HourlyBucket) (int, bool) {
	best, bestCount := 0, 0
	for _, h := range buckets {
		if h.Messages > bestCount {
			best, bestCount = h.Hour, h.Messages
		}
	}
	return best, bestCount > 0
}
