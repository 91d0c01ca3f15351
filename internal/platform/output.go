package platform

import "strings"

// TailLines returns the last n non-empty lines of out, which is usually all
// that matters in a failing tool's stderr.
func TailLines(out string, n int) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			kept = append(kept, l)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}
