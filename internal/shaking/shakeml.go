package shaking

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

type shakemapGrid struct {
	XMLName xml.Name   `xml:"shakemap_grid"`
	EventID string     `xml:"event_id,attr"`
	Event   eventElem  `xml:"event"`
	Spec    specElem   `xml:"grid_specification"`
	Fields  []gridElem `xml:"grid_field"`
	Data    string     `xml:"grid_data"`
}

type eventElem struct {
	Magnitude   float64 `xml:"magnitude,attr"`
	DepthKM     float64 `xml:"depth,attr"`
	Lat         float64 `xml:"lat,attr"`
	Lon         float64 `xml:"lon,attr"`
	Timestamp   string  `xml:"event_timestamp,attr"`
	Description string  `xml:"event_description,attr"`
	Tsunami     int     `xml:"tsunami,attr"`
}

type specElem struct {
	LonMin     float64 `xml:"lon_min,attr"`
	LatMin     float64 `xml:"lat_min,attr"`
	LonSpacing float64 `xml:"nominal_lon_spacing,attr"`
	Cols       int     `xml:"nlon,attr"`
	Rows       int     `xml:"nlat,attr"`
}

type gridElem struct {
	Index int    `xml:"index,attr"`
	Name  string `xml:"name,attr"`
}

// Timestamp layouts seen in shaking grid files.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05MST",
	"2006-01-02T15:04:05",
}

// ParseShakeGrid decodes a shaking intensity grid document.
func ParseShakeGrid(r io.Reader) (*ShakeGrid, error) {
	var doc shakemapGrid
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("shaking: decode grid document: %w", err)
	}

	originTime, err := parseTimestamp(doc.Event.Timestamp)
	if err != nil {
		return nil, err
	}
	header := Header{
		EventID:    doc.EventID,
		OriginTime: originTime,
		Lat:        doc.Event.Lat,
		Lon:        doc.Event.Lon,
		DepthKM:    doc.Event.DepthKM,
		Magnitude:  doc.Event.Magnitude,
		Location:   doc.Event.Description,
		Tsunami:    doc.Event.Tsunami != 0,
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}

	lonCol, latCol, mmiCol := -1, -1, -1
	for _, field := range doc.Fields {
		switch strings.ToUpper(field.Name) {
		case "LON":
			lonCol = field.Index - 1
		case "LAT":
			latCol = field.Index - 1
		case "MMI":
			mmiCol = field.Index - 1
		}
	}
	if lonCol < 0 || latCol < 0 || mmiCol < 0 {
		return nil, errors.New("shaking: grid document missing LON/LAT/MMI fields")
	}

	grid := &Grid{
		MinLon:   doc.Spec.LonMin,
		MinLat:   doc.Spec.LatMin,
		CellSize: doc.Spec.LonSpacing,
		Cols:     doc.Spec.Cols,
		Rows:     doc.Spec.Rows,
	}
	if err := gridGeometry(grid); err != nil {
		return nil, err
	}
	grid.Values = make([]float64, grid.Cols*grid.Rows)
	for i := range grid.Values {
		grid.Values[i] = math.NaN()
	}

	tokens := strings.Fields(doc.Data)
	width := len(doc.Fields)
	if width == 0 || len(tokens)%width != 0 {
		return nil, fmt.Errorf("shaking: grid data has %d tokens for %d fields", len(tokens), width)
	}
	for row := 0; row+width <= len(tokens); row += width {
		lon, err1 := strconv.ParseFloat(tokens[row+lonCol], 64)
		lat, err2 := strconv.ParseFloat(tokens[row+latCol], 64)
		mmi, err3 := strconv.ParseFloat(tokens[row+mmiCol], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("shaking: malformed grid row at token %d", row)
		}
		col := int(math.Round((lon - grid.MinLon) / grid.CellSize))
		rowIdx := int(math.Round((lat - grid.MinLat) / grid.CellSize))
		if col < 0 || col >= grid.Cols || rowIdx < 0 || rowIdx >= grid.Rows {
			continue
		}
		grid.Values[rowIdx*grid.Cols+col] = mmi
	}

	shake := &ShakeGrid{Header: header, MMI: grid}
	if err := shake.Validate(); err != nil {
		return nil, err
	}
	return shake, nil
}

func gridGeometry(grid *Grid) error {
	if grid.Cols <= 0 || grid.Rows <= 0 {
		return fmt.Errorf("shaking: degenerate grid dimensions %dx%d", grid.Rows, grid.Cols)
	}
	if grid.CellSize <= 0 {
		return fmt.Errorf("shaking: non-positive grid spacing %f", grid.CellSize)
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("shaking: unparseable event timestamp %q", value)
}
