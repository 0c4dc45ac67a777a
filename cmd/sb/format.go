package main

import (
	"fmt"
	"strings"
	"time"
)

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// progressBar renders progress as a fixed-width bar, e.g. "[#####.....]  50%".
func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), pct)
}

// formatDate prints a calendar date, or "-" when unset.
func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// parseDate reads a YYYY-MM-DD flag value; empty means unset.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return &t, nil
}

// formatMoney prints a value with thousands separators and two decimals,
// e.g. 12000 -> "12,000.00".
func formatMoney(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	remainder := len(whole) % 3
	if remainder > 0 {
		b.WriteString(whole[:remainder])
	}
	for i := remainder; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(whole[i : i+3])
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
