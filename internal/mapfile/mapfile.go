// Package mapfile reads the keyed text format that describes a floor:
//
//	N:name
//	S:width,height
//	T:turn limit (negative for none)
//	C:x,y   (Cool start)
//	H:x,y   (Hot start)
//	D:0,0,2,3,...   (one line per row)
package mapfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/KDT2006/chaser/internal/grid"
)

var (
	ErrMissingKey = errors.New("missing key")
	ErrMalformed  = errors.New("malformed value")
)

// Map is a parsed map file.
type Map struct {
	Name      string
	Width     int
	Height    int
	Cool      grid.Point
	Hot       grid.Point
	TurnLimit int
	Rows      [][]grid.Cell
}

// Unlimited reports whether the match has no turn limit.
func (m *Map) Unlimited() bool {
	return m.TurnLimit < 0
}

// Grid builds a fresh grid from the map.
func (m *Map) Grid() (*grid.Grid, error) {
	rows := make([][]grid.Cell, len(m.Rows))
	for i, r := range m.Rows {
		rows[i] = append([]grid.Cell(nil), r...)
	}
	return grid.New(rows, m.Cool, m.Hot)
}

// Load reads and parses a map file. A nil enc reads the bytes as they are.
func Load(path string, enc encoding.Encoding) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open map: %w", err)
	}
	defer f.Close()

	m, err := Parse(f, enc)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	return m, nil
}

// Parse reads a map definition. Any invalid or missing field rejects the
// whole input.
func Parse(r io.Reader, enc encoding.Encoding) (*Map, error) {
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	values := make(map[string][]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := line[:idx]
		values[key] = append(values[key], line[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read map: %w", err)
	}

	first := func(key string) (string, error) {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
		}
		return v[0], nil
	}

	m := &Map{}

	size, err := first("S")
	if err != nil {
		return nil, err
	}
	dim, err := grid.ParsePoint(size)
	if err != nil || dim.X <= 0 || dim.Y <= 0 {
		return nil, fmt.Errorf("%w: size %q", ErrMalformed, size)
	}
	m.Width, m.Height = dim.X, dim.Y

	if name, err := first("N"); err == nil {
		m.Name = name
	}

	for _, start := range []struct {
		key string
		dst *grid.Point
	}{{"C", &m.Cool}, {"H", &m.Hot}} {
		v, err := first(start.key)
		if err != nil {
			return nil, err
		}
		if *start.dst, err = grid.ParsePoint(v); err != nil {
			return nil, fmt.Errorf("%w: start %s: %v", ErrMalformed, start.key, err)
		}
	}

	turns, err := first("T")
	if err != nil {
		return nil, err
	}
	if m.TurnLimit, err = strconv.Atoi(strings.TrimSpace(turns)); err != nil {
		return nil, fmt.Errorf("%w: turn limit %q", ErrMalformed, turns)
	}

	// rows past the declared height are ignored
	lines := values["D"]
	if len(lines) < m.Height {
		return nil, fmt.Errorf("%w: %d rows, size says %d", ErrMalformed, len(lines), m.Height)
	}
	lines = lines[:m.Height]
	for y, line := range lines {
		row, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", y, err)
		}
		if len(row) != m.Width {
			return nil, fmt.Errorf("%w: row %d has %d cells, size says %d", ErrMalformed, y, len(row), m.Width)
		}
		m.Rows = append(m.Rows, row)
	}

	return m, nil
}

func parseRow(line string) ([]grid.Cell, error) {
	parts := strings.Split(line, ",")
	row := make([]grid.Cell, 0, len(parts))
	for i, p := range parts {
		var c grid.Cell
		if p != "" {
			c = grid.ParseTerrain(p[0])
		}
		if c == grid.CellUnknown {
			return nil, fmt.Errorf("%w: cell %d is %q", ErrMalformed, i, p)
		}
		row = append(row, c)
	}
	return row, nil
}
