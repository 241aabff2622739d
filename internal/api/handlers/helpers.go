package handlers

import "strconv"

// limitParam parses a ?limit= query value, clamping to [1, max] and falling
// back to def when absent or malformed.
func limitParam(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
