package tools

import "strings"

// OutputLimits caps how much tool output is fed back to the model.
type OutputLimits struct {
	MaxBytes int64
}

// DefaultLimits returns the standard output cap.
func DefaultLimits() OutputLimits {
	return OutputLimits{MaxBytes: 64 * 1024}
}

func truncateBytes(s string, limits OutputLimits) (string, bool) {
	if int64(len(s)) <= limits.MaxBytes {
		return s, false
	}
	return s[:limits.MaxBytes], true
}

func truncateOneLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
