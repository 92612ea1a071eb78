package tui

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ellipsis shortens s to n runes, marking the cut with "…".
func ellipsis(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
