package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a position on the floor. X grows to the right, Y grows downwards.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Up() Point    { return Point{X: p.X, Y: p.Y - 1} }
func (p Point) Down() Point  { return Point{X: p.X, Y: p.Y + 1} }
func (p Point) Left() Point  { return Point{X: p.X - 1, Y: p.Y} }
func (p Point) Right() Point { return Point{X: p.X + 1, Y: p.Y} }

// Shift returns the point one step away in the given direction.
func (p Point) Shift(d Direction) Point {
	switch d {
	case Up:
		return p.Up()
	case Down:
		return p.Down()
	case Left:
		return p.Left()
	case Right:
		return p.Right()
	default:
		panic(fmt.Sprintf("grid: shift in unknown direction %d", d))
	}
}

// Around enumerates the neighbours of p row by row: up-left, up, up-right,
// left, [p], right, down-left, down, down-right.
func (p Point) Around(withSelf bool) []Point {
	pts := make([]Point, 0, 9)
	pts = append(pts, p.Up().Left(), p.Up(), p.Up().Right(), p.Left())
	if withSelf {
		pts = append(pts, p)
	}
	return append(pts, p.Right(), p.Down().Left(), p.Down(), p.Down().Right())
}

// Orthogonal returns the four points sharing an edge with p.
func (p Point) Orthogonal() [4]Point {
	return [4]Point{p.Up(), p.Left(), p.Right(), p.Down()}
}

func (p Point) String() string {
	return strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
}

// ParsePoint reads the "x,y" form used by map files.
func ParsePoint(s string) (Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok || strings.Contains(ys, ",") {
		return Point{}, fmt.Errorf("invalid point %q: want \"x,y\"", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}
