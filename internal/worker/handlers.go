package worker

import (
	"fmt"

	"github.com/maumercado/jobrunner-go/internal/task"
)

// ResultFunc computes the result text for a finished task.
type ResultFunc func(consumer string, t *task.Task) string

// DefaultHandlers returns the result registry keyed by task_type. Types
// without a registered handler fall back to text processing; task_type is
// carried for future divergence.
func DefaultHandlers() map[string]ResultFunc {
	return map[string]ResultFunc{
		task.DefaultTaskType: TextProcessingResult,
	}
}

// TextProcessingResult reverses the input, tagged with the consumer that did
// the work so failover is observable in the result itself.
func TextProcessingResult(consumer string, t *task.Task) string {
	return fmt.Sprintf("Processed by %s: %s", consumer, reverse(t.InputData))
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
