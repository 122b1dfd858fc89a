// Package progress renders questionnaire progress and the waiting animation.
package progress

import (
	"fmt"
	"strings"
)

func clamp(step, total int) int {
	if total < 0 {
		total = 0
	}
	return max(0, min(step, total))
}

func percent(step, total int) int {
	if total <= 0 {
		return 0
	}
	return step * 100 / total
}

// Bar renders the questionnaire indicator, e.g.
// "📊 Прогресс: ▰▰▱▱▱▱▱ 28% (Шаг 2/7)".
func Bar(step, total int) string {
	step = clamp(step, total)
	filled := strings.Repeat("▰", step)
	empty := strings.Repeat("▱", max(total-step, 0))
	return fmt.Sprintf("📊 Прогресс: %s%s %d%% (Шаг %d/%d)", filled, empty, percent(step, total), step, total)
}

// Loading renders one frame of the waiting animation, e.g. "[==...] 40%".
func Loading(step, total int) string {
	step = clamp(step, total)
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("=", step),
		strings.Repeat(".", max(total-step, 0)),
		percent(step, total))
}

// Frames returns every animation frame from empty to full.
func Frames(total int) []string {
	if total < 0 {
		total = 0
	}
	frames := make([]string, 0, total+1)
	for step := 0; step <= total; step++ {
		frames = append(frames, Loading(step, total))
	}
	return frames
}
