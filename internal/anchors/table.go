// Package anchors loads and generates the SSD anchor table used to decode the
// pose detector output.
package anchors

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// PoseAnchorCount is the number of anchors produced by the 224x224 pose detector.
const PoseAnchorCount = 2254

// Anchor is a normalized anchor center in detector input space (0-1).
type Anchor struct {
	X float64
	Y float64
}

// Table is a fixed-size, read-only list of anchors. It is safe for concurrent use.
type Table struct {
	anchors []Anchor
}

// ParseError reports an anchor resource that could not supply enough rows.
type ParseError struct {
	Want    int    // rows required
	Got     int    // valid rows found
	Line    int    // first rejected line, 0 if none
	Content string // content of the first rejected line
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("anchors: found %d valid rows, need %d (first bad row at line %d: %q)",
			e.Got, e.Want, e.Line, e.Content)
	}
	return fmt.Sprintf("anchors: found %d valid rows, need %d", e.Got, e.Want)
}

// IndexError reports a lookup outside the table.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("anchors: index %d out of range [0, %d)", e.Index, e.Len)
}

// New wraps an existing anchor slice. The slice is copied.
func New(anchors []Anchor) *Table {
	cp := make([]Anchor, len(anchors))
	copy(cp, anchors)
	return &Table{anchors: cp}
}

// Load reads exactly n anchors from r. Each row holds at least two numeric
// columns separated by commas and/or whitespace; only the first two are used.
// Blank lines and lines starting with '#' are skipped. Rows past n are ignored.
func Load(r io.Reader, n int) (*Table, error) {
	anchors := make([]Anchor, 0, n)
	perr := &ParseError{Want: n}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() && len(anchors) < n {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		a, ok := parseRow(line)
		if !ok {
			if perr.Line == 0 {
				perr.Line = lineNo
				perr.Content = line
			}
			continue
		}
		anchors = append(anchors, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read anchors: %w", err)
	}

	if len(anchors) < n {
		perr.Got = len(anchors)
		return nil, perr
	}

	return &Table{anchors: anchors}, nil
}

// LoadFile opens path and loads n anchors from it.
func LoadFile(path string, n int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open anchors: %w", err)
	}
	defer f.Close()

	return Load(f, n)
}

func parseRow(line string) (Anchor, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) < 2 {
		return Anchor{}, false
	}

	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Anchor{}, false
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Anchor{}, false
	}
	if !finite(x) || !finite(y) {
		return Anchor{}, false
	}
	return Anchor{X: x, Y: y}, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Len returns the number of anchors.
func (t *Table) Len() int {
	return len(t.anchors)
}

// Get returns the anchor at index i.
func (t *Table) Get(i int) (Anchor, error) {
	if i < 0 || i >= len(t.anchors) {
		return Anchor{}, &IndexError{Index: i, Len: len(t.anchors)}
	}
	return t.anchors[i], nil
}

// WriteTo writes the table as "x,y" CSV rows.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, a := range t.anchors {
		n, err := fmt.Fprintf(bw, "%s,%s\n",
			strconv.FormatFloat(a.X, 'g', -1, 64),
			strconv.FormatFloat(a.Y, 'g', -1, 64))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}
