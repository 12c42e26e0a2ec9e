package cv

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"jordanella.com/runner-collector/internal/config"
)

// OccupancyGrid holds one row per selected band, each with one bit per column
type OccupancyGrid [][]uint8

// NewOccupancyGrid creates an all-zero grid
func NewOccupancyGrid(rows, columns int) OccupancyGrid {
	g := make(OccupancyGrid, rows)
	for i := range g {
		g[i] = make([]uint8, columns)
	}
	return g
}

// OccupiedRows counts rows with at least one occupied cell
func (g OccupancyGrid) OccupiedRows() int {
	n := 0
	for _, row := range g {
		for _, v := range row {
			if v != 0 {
				n++
				break
			}
		}
	}
	return n
}

// IsZero reports whether no cell is occupied
func (g OccupancyGrid) IsZero() bool {
	return g.OccupiedRows() == 0
}

// Equal compares two grids cell by cell
func (g OccupancyGrid) Equal(other OccupancyGrid) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if len(g[i]) != len(other[i]) {
			return false
		}
		for j := range g[i] {
			if g[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// String serializes the grid as nested brackets, e.g. [[0,1],[1,1],[0,0]]
func (g OccupancyGrid) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, row := range g {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(v)))
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
	return b.String()
}

// ParseOccupancyGrid parses the String form back into a grid
func ParseOccupancyGrid(s string) (OccupancyGrid, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed grid %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return OccupancyGrid{}, nil
	}

	var grid OccupancyGrid
	for len(inner) > 0 {
		if inner[0] != '[' {
			return nil, fmt.Errorf("malformed grid row in %q", s)
		}
		end := strings.IndexByte(inner, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated grid row in %q", s)
		}

		var row []uint8
		for _, field := range strings.Split(inner[1:end], ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.Atoi(field)
			if err != nil || (v != 0 && v != 1) {
				return nil, fmt.Errorf("invalid grid cell %q", field)
			}
			row = append(row, uint8(v))
		}
		grid = append(grid, row)

		inner = strings.TrimSpace(inner[end+1:])
		inner = strings.TrimSpace(strings.TrimPrefix(inner, ","))
	}
	return grid, nil
}

// Cell is one evaluated grid cell, kept for annotation
type Cell struct {
	Row, Column int
	Rect        image.Rectangle
	Foreground  int
	Occupied    bool
}

// Quantizer turns a platform mask into an occupancy grid relative to the player
type Quantizer struct {
	grid config.Grid
}

// NewQuantizer creates a quantizer for the configured grid
func NewQuantizer(grid config.Grid) *Quantizer {
	return &Quantizer{grid: grid}
}

// Bands returns the top edge of every band the player box selects, in scan order,
// capped at the configured band count
func (q *Quantizer) Bands(frameHeight int, player BoundingBox) []int {
	cellH := q.grid.CellHeight()
	if cellH <= 0 {
		return nil
	}
	near := float64(player.Top()) + q.grid.NearOffset*float64(player.Height)
	far := float64(player.Top()) + q.grid.FarOffset*float64(player.Height)

	var bands []int
	for y := 0; y < frameHeight-cellH; y += cellH {
		if float64(y) < far && float64(y+cellH) > near {
			bands = append(bands, y)
			if len(bands) == q.grid.Bands {
				break
			}
		}
	}
	return bands
}

// Quantize evaluates every column of every selected band. Rows for which no
// band qualifies stay zero.
func (q *Quantizer) Quantize(mask *image.Gray, player BoundingBox) (OccupancyGrid, []Cell) {
	grid := NewOccupancyGrid(q.grid.Bands, q.grid.Columns)
	if mask == nil {
		return grid, nil
	}

	bounds := mask.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	cellW, cellH := q.grid.CellWidth(), q.grid.CellHeight()
	if cellW <= 0 || cellH <= 0 {
		return grid, nil
	}

	var cells []Cell
	for row, y := range q.Bands(height, player) {
		col := 0
		for x := 0; x < width-cellW && col < q.grid.Columns; x += cellW {
			rect := image.Rect(x, y, x+cellW, y+cellH).Add(bounds.Min)
			fg, total := countForeground(mask, rect)
			occupied := float64(fg) > q.grid.OccupancyRatio*float64(total)
			if occupied {
				grid[row][col] = 1
			}
			cells = append(cells, Cell{
				Row:        row,
				Column:     col,
				Rect:       rect,
				Foreground: fg,
				Occupied:   occupied,
			})
			col++
		}
	}
	return grid, cells
}

func countForeground(mask *image.Gray, rect image.Rectangle) (fg, total int) {
	rect = rect.Intersect(mask.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		off := mask.PixOffset(rect.Min.X, y)
		for _, v := range mask.Pix[off : off+rect.Dx()] {
			if v != 0 {
				fg++
			}
		}
	}
	return fg, rect.Dx() * rect.Dy()
}
