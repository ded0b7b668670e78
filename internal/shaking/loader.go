package shaking

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileLoader reads grids from the local filesystem. Shaking grids are XML
// documents; auxiliary grids use the ASCII raster format (ncols/nrows header
// followed by rows from the northern edge down).
type FileLoader struct{}

// NewFileLoader constructs a loader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// LoadShakeGrid reads and parses a shaking grid document.
func (l *FileLoader) LoadShakeGrid(ctx context.Context, path string) (*ShakeGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseShakeGrid(f)
}

// LoadGrid reads an ASCII raster grid.
func (l *FileLoader) LoadGrid(ctx context.Context, path string) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseASCIIGrid(f, path)
}

// ParseASCIIGrid decodes an ASCII raster. The name is used in errors only.
func ParseASCIIGrid(f *os.File, name string) (*Grid, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)

	header := map[string]float64{}
	nodata := -9999.0
	var values []float64
	grid := &Grid{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])
		if len(fields) == 2 && isHeaderKey(key) {
			value, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("shaking: %s: bad header %q", name, line)
			}
			header[key] = value
			continue
		}
		if values == nil {
			grid.Cols = int(header["ncols"])
			grid.Rows = int(header["nrows"])
			grid.MinLon = header["xllcorner"]
			grid.MinLat = header["yllcorner"]
			grid.CellSize = header["cellsize"]
			if v, ok := header["nodata_value"]; ok {
				nodata = v
			}
			if err := gridGeometry(grid); err != nil {
				return nil, fmt.Errorf("shaking: %s: %w", name, err)
			}
			values = make([]float64, 0, grid.Cols*grid.Rows)
		}
		for _, token := range fields {
			value, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, fmt.Errorf("shaking: %s: bad value %q", name, token)
			}
			if value == nodata {
				value = 0
			}
			values = append(values, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) != grid.Cols*grid.Rows {
		return nil, fmt.Errorf("shaking: %s: %d values for %dx%d grid", name, len(values), grid.Rows, grid.Cols)
	}

	// Raster rows run north to south; flip into the south-up layout.
	grid.Values = make([]float64, len(values))
	for row := 0; row < grid.Rows; row++ {
		srcStart := row * grid.Cols
		dstStart := (grid.Rows - 1 - row) * grid.Cols
		copy(grid.Values[dstStart:dstStart+grid.Cols], values[srcStart:srcStart+grid.Cols])
	}
	return grid, nil
}

func isHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value":
		return true
	}
	return false
}
