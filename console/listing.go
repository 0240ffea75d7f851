package console

import (
	"fmt"
	"strings"
)

const (
	GreenColor = "\u001b[32m"
	GrayColor  = "\u001b[38;5;245m"
	ResetColor = "\u001b[0m"
)

const listingContext = 4

func CountDigits(number int) int {
	if number < 10 {
		return 1
	}
	return 1 + CountDigits(number/10)
}

// Listing renders the lines around current (1-based), marking current.
func Listing(lines []string, current int, color bool) string {
	green, gray, reset := GreenColor, GrayColor, ResetColor
	if !color {
		green, gray, reset = "", "", ""
	}
	first := max(1, current-listingContext)
	last := min(len(lines), current+listingContext)

	var b strings.Builder
	for n := first; n <= last; n++ {
		totalPadding := 6
		digits := CountDigits(n)
		if digits >= totalPadding {
			totalPadding = digits + 1
		}
		padding := strings.Repeat(" ", totalPadding-digits)
		if n == current {
			fmt.Fprintf(&b, "%s>%s %d%s%s\n", green, reset, n, padding, lines[n-1])
		} else {
			fmt.Fprintf(&b, "%s  %d%s%s%s\n", gray, n, padding, lines[n-1], reset)
		}
	}
	return b.String()
}
