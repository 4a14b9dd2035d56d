package game

import "strings"

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) Add(d Direction) Cell {
	return Cell{X: c.X + d.Dx, Y: c.Y + d.Dy}
}

type Direction struct {
	Dx int `json:"dx"`
	Dy int `json:"dy"`
}

var (
	Up    = Direction{Dx: 0, Dy: -1}
	Down  = Direction{Dx: 0, Dy: 1}
	Left  = Direction{Dx: -1, Dy: 0}
	Right = Direction{Dx: 1, Dy: 0}
)

var Directions = []Direction{Up, Right, Down, Left}

// Valid reports whether d is one of the four unit headings.
func (d Direction) Valid() bool {
	return (d.Dx == 0) != (d.Dy == 0) && d.Dx*d.Dx+d.Dy*d.Dy == 1
}

func (d Direction) Horizontal() bool {
	return d.Dy == 0 && d.Dx != 0
}

// SameAxis is true for equal and opposite headings.
func (d Direction) SameAxis(other Direction) bool {
	return d.Horizontal() == other.Horizontal()
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

var directionNames = map[string]Direction{
	"up": Up, "w": Up, "k": Up, "arrowup": Up, "swipeup": Up,
	"down": Down, "s": Down, "j": Down, "arrowdown": Down, "swipedown": Down,
	"left": Left, "a": Left, "h": Left, "arrowleft": Left, "swipeleft": Left,
	"right": Right, "d": Right, "l": Right, "arrowright": Right, "swiperight": Right,
}

// ParseDirection maps a key or gesture name onto a heading. Unknown input
// yields false and should be ignored by the caller.
func ParseDirection(input string) (Direction, bool) {
	dir, ok := directionNames[strings.ToLower(strings.TrimSpace(input))]
	return dir, ok
}
