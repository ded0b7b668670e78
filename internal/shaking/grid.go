package shaking

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Header carries the shaking grid metadata validated at the input boundary.
type Header struct {
	EventID    string
	OriginTime time.Time
	Lat        float64
	Lon        float64
	DepthKM    float64
	Magnitude  float64
	Location   string
	Tsunami    bool
}

// Validate checks header invariants.
func (h Header) Validate() error {
	if h.EventID == "" {
		return errors.New("shaking: empty event id")
	}
	if h.OriginTime.IsZero() {
		return errors.New("shaking: missing origin time")
	}
	if h.Lat < -90 || h.Lat > 90 {
		return fmt.Errorf("shaking: latitude %f out of range", h.Lat)
	}
	if h.Lon < -180 || h.Lon > 180 {
		return fmt.Errorf("shaking: longitude %f out of range", h.Lon)
	}
	if h.Magnitude <= 0 {
		return fmt.Errorf("shaking: magnitude %f out of range", h.Magnitude)
	}
	return nil
}

// Grid is a regular 2-D field over a geographic window. Values are stored
// row-major from the southern edge up; cells are square in degrees.
type Grid struct {
	MinLon   float64
	MinLat   float64
	CellSize float64
	Cols     int
	Rows     int
	Values   []float64
}

// Validate checks the grid geometry and payload size.
func (g *Grid) Validate() error {
	if g == nil {
		return errors.New("shaking: nil grid")
	}
	if g.Cols <= 0 || g.Rows <= 0 {
		return fmt.Errorf("shaking: degenerate grid %dx%d", g.Rows, g.Cols)
	}
	if g.CellSize <= 0 {
		return fmt.Errorf("shaking: non-positive cell size %f", g.CellSize)
	}
	if len(g.Values) != g.Cols*g.Rows {
		return fmt.Errorf("shaking: grid has %d values, want %d", len(g.Values), g.Cols*g.Rows)
	}
	return nil
}

// At returns the value at the given row (south to north) and column.
func (g *Grid) At(row, col int) float64 {
	return g.Values[row*g.Cols+col]
}

// CellCenter returns the geographic center of a cell.
func (g *Grid) CellCenter(row, col int) (lon, lat float64) {
	lon = g.MinLon + (float64(col)+0.5)*g.CellSize
	lat = g.MinLat + (float64(row)+0.5)*g.CellSize
	return lon, lat
}

// Bounds returns the outer edges of the grid window.
func (g *Grid) Bounds() (minLon, minLat, maxLon, maxLat float64) {
	return g.MinLon, g.MinLat,
		g.MinLon + float64(g.Cols)*g.CellSize,
		g.MinLat + float64(g.Rows)*g.CellSize
}

// SampleAt returns the value of the cell containing the point, or false when
// the point falls outside the grid window.
func (g *Grid) SampleAt(lon, lat float64) (float64, bool) {
	col := int(math.Floor((lon - g.MinLon) / g.CellSize))
	row := int(math.Floor((lat - g.MinLat) / g.CellSize))
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return 0, false
	}
	return g.At(row, col), true
}

// Overlaps reports whether two grid windows intersect at all.
func Overlaps(a, b *Grid) bool {
	aMinLon, aMinLat, aMaxLon, aMaxLat := a.Bounds()
	bMinLon, bMinLat, bMaxLon, bMaxLat := b.Bounds()
	return aMinLon < bMaxLon && bMinLon < aMaxLon &&
		aMinLat < bMaxLat && bMinLat < aMaxLat
}

// Resample produces a copy of src aligned to the target geometry using
// nearest-cell sampling. Cells of the target outside src become zero. It
// fails when the two windows do not overlap at all.
func Resample(src, target *Grid) (*Grid, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if !Overlaps(src, target) {
		return nil, errors.New("shaking: grid windows do not overlap")
	}
	out := &Grid{
		MinLon:   target.MinLon,
		MinLat:   target.MinLat,
		CellSize: target.CellSize,
		Cols:     target.Cols,
		Rows:     target.Rows,
		Values:   make([]float64, target.Cols*target.Rows),
	}
	for row := 0; row < target.Rows; row++ {
		for col := 0; col < target.Cols; col++ {
			lon, lat := target.CellCenter(row, col)
			if value, ok := src.SampleAt(lon, lat); ok {
				out.Values[row*out.Cols+col] = value
			}
		}
	}
	return out, nil
}

// ShakeGrid is the validated shaking-intensity input consumed by the pipeline.
type ShakeGrid struct {
	Header Header
	MMI    *Grid
}

// Validate checks the header and the intensity field together.
func (s *ShakeGrid) Validate() error {
	if s == nil {
		return errors.New("shaking: nil shake grid")
	}
	if err := s.Header.Validate(); err != nil {
		return err
	}
	return s.MMI.Validate()
}
