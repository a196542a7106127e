package board

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
)

const Size = 10

var ErrOutOfBounds = errors.New("coordinate out of bounds")
var ErrUnknownCell = errors.New("unknown cell value")
var ErrBadShape = errors.New("board must be 10x10")

type Cell string

const (
	Unknown Cell = "unknown"
	Ship    Cell = "ship"
	Hit     Cell = "hit"
	Miss    Cell = "miss"
)

func ParseCell(s string) (Cell, error) {
	switch c := Cell(s); c {
	case Unknown, Ship, Hit, Miss:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCell, s)
	}
}

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

func (c Coord) String() string {
	return fmt.Sprintf("%d,%d", c.Row, c.Col)
}

// Grid is a row-major 10x10 board. The zero value is not usable; call Empty.
type Grid [Size][Size]Cell

func Empty() Grid {
	var g Grid
	for r := range Size {
		for c := range Size {
			g[r][c] = Unknown
		}
	}
	return g
}

// FromRows converts the nested wire representation into a Grid.
func FromRows(rows [][]string) (Grid, error) {
	var g Grid
	if len(rows) != Size {
		return g, fmt.Errorf("%w: got %d rows", ErrBadShape, len(rows))
	}
	for r, row := range rows {
		if len(row) != Size {
			return g, fmt.Errorf("%w: row %d has %d cells", ErrBadShape, r, len(row))
		}
		for c, v := range row {
			cell, err := ParseCell(v)
			if err != nil {
				return g, fmt.Errorf("cell %d,%d: %w", r, c, err)
			}
			g[r][c] = cell
		}
	}
	return g, nil
}

func (g *Grid) Get(at Coord) (Cell, error) {
	if !at.InBounds() {
		return Unknown, ErrOutOfBounds
	}
	return g[at.Row][at.Col], nil
}

// Count returns how many cells hold the given value.
func (g *Grid) Count(cell Cell) int {
	n := 0
	for r := range Size {
		for c := range Size {
			if g[r][c] == cell {
				n++
			}
		}
	}
	return n
}

// Valid reports whether every cell holds one of the four known values.
func (g *Grid) Valid() bool {
	for r := range Size {
		for c := range Size {
			if _, err := ParseCell(string(g[r][c])); err != nil {
				return false
			}
		}
	}
	return true
}

// Masked returns a copy with Ship cells shown as Unknown, which is how an
// opponent's board must look to the viewing side.
func (g Grid) Masked() Grid {
	for r := range Size {
		for c := range Size {
			if g[r][c] == Ship {
				g[r][c] = Unknown
			}
		}
	}
	return g
}

func (g Grid) Rows() [][]string {
	rows := make([][]string, Size)
	for r := range Size {
		rows[r] = make([]string, Size)
		for c := range Size {
			rows[r][c] = string(g[r][c])
		}
	}
	return rows
}

func (g Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Rows())
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	parsed, err := FromRows(rows)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g Grid) String() string {
	var buffer bytes.Buffer
	tw := tabwriter.NewWriter(&buffer, 2, 0, 1, ' ', 0)

	fmt.Fprint(tw, "\t")
	for c := range Size {
		fmt.Fprint(tw, strconv.Itoa(c)+"\t")
	}
	fmt.Fprint(tw, "\n")

	for r := range Size {
		fmt.Fprint(tw, strconv.Itoa(r)+"\t")
		for c := range Size {
			switch g[r][c] {
			case Ship:
				fmt.Fprint(tw, "S\t")
			case Hit:
				fmt.Fprint(tw, "X\t")
			case Miss:
				fmt.Fprint(tw, "O\t")
			default:
				fmt.Fprint(tw, "~\t")
			}
		}
		fmt.Fprint(tw, "\n")
	}
	tw.Flush()
	return buffer.String()
}
