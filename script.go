package gjsdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-sourcemap/sourcemap"
)

type Position struct {
	Line, Col int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// SiteKind distinguishes plain statements from `debugger;` statements.
type SiteKind int

const (
	SiteStatement SiteKind = iota
	SiteDebugger
)

// Site is one instrumented statement.
type Site struct {
	ID        int
	Script    *Script
	Pos       Position
	Kind      SiteKind
	FuncEntry bool
	FuncName  string

	hits int64
}

// Hits returns how many times the statement has executed.
func (s *Site) Hits() int64 {
	return s.hits
}

// Location returns the position of the site in the original source, going
// through the script's source map when there is one.
func (s *Site) Location() (url string, line, col int) {
	return s.Script.Original(s.Pos)
}

type insertion struct {
	offset int
	length int
}

// Script is a debuggee script as loaded. Source is the text the user wrote;
// the compiled program may differ by the inserted hook calls, but never by
// line breaks.
type Script struct {
	URL          string
	Source       string
	Instrumented bool
	Sites        []*Site

	lineOffsets []int
	inserts     []insertion
	srcMap      *sourcemap.Consumer
	// columns of line 1 in the compiled program are shifted by this many
	// bytes of wrapper text
	lineShift int
}

func newScript(url, src string) *Script {
	s := &Script{
		URL:    url,
		Source: src,
	}
	s.lineOffsets = append(s.lineOffsets, 0)
	for o := 0; ; {
		p := strings.IndexByte(src[o:], '\n')
		if p == -1 {
			break
		}
		o += p + 1
		s.lineOffsets = append(s.lineOffsets, o)
	}
	return s
}

// LineCount returns the number of source lines.
func (s *Script) LineCount() int {
	return len(s.lineOffsets)
}

// Line returns source line n (1-based) without its terminator.
func (s *Script) Line(n int) (string, bool) {
	if n < 1 || n > len(s.lineOffsets) {
		return "", false
	}
	start := s.lineOffsets[n-1]
	end := len(s.Source)
	if n < len(s.lineOffsets) {
		end = s.lineOffsets[n] - 1
	}
	return strings.TrimSuffix(s.Source[start:end], "\r"), true
}

func (s *Script) position(offset int) Position {
	offset = max(0, min(offset, len(s.Source)))
	line := sort.Search(len(s.lineOffsets), func(x int) bool { return s.lineOffsets[x] > offset }) - 1
	return Position{
		Line: line + 1,
		Col:  offset - s.lineOffsets[line] + 1,
	}
}

// sourceColumn maps a column of the instrumented program back to the
// column in Source. Columns inside a hook call map to the statement it
// precedes.
func (s *Script) sourceColumn(line, col int) int {
	if line == 1 && s.lineShift > 0 {
		col = max(1, col-s.lineShift)
	}
	if line < 1 || line > len(s.lineOffsets) || col < 1 {
		return col
	}
	lineStart := s.lineOffsets[line-1]
	lineEnd := len(s.Source)
	if line < len(s.lineOffsets) {
		lineEnd = s.lineOffsets[line]
	}
	rel, gen, cur := col-1, 0, lineStart
	for _, ins := range s.inserts {
		if ins.offset < lineStart {
			continue
		}
		if ins.offset >= lineEnd {
			break
		}
		d := ins.offset - cur
		if rel < gen+d {
			break
		}
		gen += d
		cur = ins.offset
		if rel < gen+ins.length {
			return cur - lineStart + 1
		}
		gen += ins.length
	}
	return cur - lineStart + rel - gen + 1
}

// Original maps pos through the source map, if any.
func (s *Script) Original(pos Position) (url string, line, col int) {
	if s.srcMap != nil {
		if source, _, l, c, ok := s.srcMap.Source(pos.Line, pos.Col-1); ok {
			return source, l, c + 1
		}
	}
	return s.URL, pos.Line, pos.Col
}
