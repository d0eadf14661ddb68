// Package utils provides small formatting helpers used by log lines and the
// status API.
package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Millify converts a number to a human-readable string with SI suffixes.
// For example: 1000 -> "1K", 1500000 -> "1.5M".
func Millify(n int, precision int) string {
	if precision < 0 {
		precision = 2
	}

	abs := math.Abs(float64(n))
	sign := ""
	if n < 0 {
		sign = "-"
	}

	suffixes := []struct {
		threshold float64
		suffix    string
	}{
		{1e12, "T"},
		{1e9, "B"},
		{1e6, "M"},
		{1e3, "K"},
	}

	for _, s := range suffixes {
		if abs >= s.threshold {
			return sign + formatFloat(abs/s.threshold, precision) + s.suffix
		}
	}

	return fmt.Sprintf("%d", n)
}

func formatFloat(f float64, precision int) string {
	s := fmt.Sprintf("%.*f", precision, f)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// FormatUptime renders a duration as "1h02m", "5m07s" or "42s".
// Negative durations are treated as zero.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)

	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
