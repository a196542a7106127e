// Package fleet models a player's fleet draft and validates it before it is
// submitted to the game service.
package fleet

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/battleships-client/internal/board"
)

// Validation failures, in priority order.
var ErrWrongComposition = errors.New("wrong fleet composition")
var ErrOutOfBounds = errors.New("ship out of bounds")
var ErrOverlap = errors.New("ships overlap")

var ErrUnknownShip = errors.New("unknown ship")
var ErrBadOrientation = errors.New("orientation must be H or V")

// Lengths is the required fleet composition, order irrelevant.
var Lengths = []int{5, 4, 3, 3, 2}

type Orientation string

const (
	Horizontal Orientation = "H"
	Vertical   Orientation = "V"
)

func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(s); o {
	case Horizontal, Vertical:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrBadOrientation, s)
	}
}

type Placement struct {
	ID          string      `json:"id"`
	Length      int         `json:"length"`
	Start       board.Coord `json:"start"`
	Orientation Orientation `json:"orientation"`
}

// Ship is what the game service receives for one placement.
type Ship struct {
	Start       board.Coord
	Orientation Orientation
	Length      int
}

type Draft []Placement

// ShipCells lists the cells a placement occupies, starting at Start and
// extending along columns when horizontal and along rows when vertical.
func ShipCells(p Placement) ([]board.Coord, error) {
	cells := make([]board.Coord, 0, max(p.Length, 0))
	for i := range p.Length {
		at := p.Start
		if p.Orientation == Vertical {
			at.Row += i
		} else {
			at.Col += i
		}
		if !at.InBounds() {
			return nil, ErrOutOfBounds
		}
		cells = append(cells, at)
	}
	return cells, nil
}

// Validate returns nil for a legal draft, otherwise the first violation:
// composition, then bounds, then overlap.
func Validate(d Draft) error {
	lengths := make([]int, len(d))
	for i, p := range d {
		lengths[i] = p.Length
	}
	slices.Sort(lengths)
	want := slices.Clone(Lengths)
	slices.Sort(want)
	if !slices.Equal(lengths, want) {
		return ErrWrongComposition
	}

	occupied := make([][]board.Coord, len(d))
	for i, p := range d {
		cells, err := ShipCells(p)
		if err != nil {
			return err
		}
		occupied[i] = cells
	}

	used := make(map[board.Coord]bool, 17)
	for _, cells := range occupied {
		for _, at := range cells {
			if used[at] {
				return ErrOverlap
			}
			used[at] = true
		}
	}
	return nil
}

// DefaultDraft is a valid layout the player can tweak; it is also the target
// of a draft reset.
func DefaultDraft() Draft {
	return Draft{
		{ID: "s5", Length: 5, Start: board.Coord{Row: 0, Col: 0}, Orientation: Horizontal},
		{ID: "s4", Length: 4, Start: board.Coord{Row: 2, Col: 0}, Orientation: Horizontal},
		{ID: "s3a", Length: 3, Start: board.Coord{Row: 4, Col: 0}, Orientation: Horizontal},
		{ID: "s3b", Length: 3, Start: board.Coord{Row: 6, Col: 0}, Orientation: Horizontal},
		{ID: "s2", Length: 2, Start: board.Coord{Row: 8, Col: 0}, Orientation: Horizontal},
	}
}

// Preview marks every cell covered by a placement as a ship. Placements that
// leave the board are skipped; Validate still reports them.
func Preview(d Draft) board.Grid {
	g := board.Empty()
	for _, p := range d {
		cells, err := ShipCells(p)
		if err != nil {
			continue
		}
		for _, at := range cells {
			g[at.Row][at.Col] = board.Ship
		}
	}
	return g
}

func (d Draft) Clone() Draft {
	return slices.Clone(d)
}

// Move returns a copy of the draft with one ship repositioned.
func (d Draft) Move(id string, start board.Coord, o Orientation) (Draft, error) {
	i := slices.IndexFunc(d, func(p Placement) bool { return p.ID == id })
	if i < 0 {
		return d, fmt.Errorf("%w: %q", ErrUnknownShip, id)
	}
	if _, err := ParseOrientation(string(o)); err != nil {
		return d, err
	}
	next := d.Clone()
	next[i].Start = start
	next[i].Orientation = o
	return next, nil
}

// Ships is the submission payload, in draft order.
func (d Draft) Ships() []Ship {
	ships := make([]Ship, len(d))
	for i, p := range d {
		ships[i] = Ship{Start: p.Start, Orientation: p.Orientation, Length: p.Length}
	}
	return ships
}
