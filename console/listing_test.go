package console

import (
	"fmt"
	"strings"
	"testing"
)

func TestCountDigits(t *testing.T) {
	for n, want := range map[int]int{0: 1, 9: 1, 10: 2, 99: 2, 100: 3, 12345: 5} {
		if got := CountDigits(n); got != want {
			t.Errorf("CountDigits(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestListing(t *testing.T) {
	got := Listing([]string{"a", "b", "c"}, 2, false)
	want := "  1     a\n> 2     b\n  3     c\n"
	if got != want {
		t.Fatalf("Listing() = %q, want %q", got, want)
	}
}

func TestListingWindow(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	out := Listing(lines, 10, false)
	rows := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(rows) != 9 {
		t.Fatalf("got %d rows, want 9:\n%s", len(rows), out)
	}
	if !strings.HasPrefix(rows[0], "  6 ") || !strings.HasPrefix(rows[8], "  14") {
		t.Errorf("unexpected window:\n%s", out)
	}
	if rows[4] != "> 10    line 10" {
		t.Errorf("current row = %q", rows[4])
	}

	if out := Listing(lines, 20, false); strings.Count(out, "\n") != 5 {
		t.Errorf("window at the end:\n%s", out)
	}
}

func TestListingColor(t *testing.T) {
	out := Listing([]string{"a", "b"}, 1, true)
	if !strings.Contains(out, GreenColor+">"+ResetColor+" 1") {
		t.Errorf("current line is not highlighted: %q", out)
	}
	if !strings.Contains(out, GrayColor+"  2") {
		t.Errorf("context line is not grayed: %q", out)
	}
}
