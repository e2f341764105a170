// Package segment splits a multi-trial simulator log into per-trial tables.
//
// A log is a header-less CSV in which every trial is introduced by a marker
// row repeating the column names. Rows keep their position in the file as
// their index so the locators can do neighbour arithmetic across a trial.
package segment

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/banshee-data/reaction.report/internal/fsutil"
	"github.com/banshee-data/reaction.report/internal/monitoring"
	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// ErrSourceNotFound is returned when the input log does not exist.
var ErrSourceNotFound = errors.New("input source not found")

// Segmenter reads simulator logs from a FileSystem.
type Segmenter struct {
	FS     fsutil.FileSystem
	Header []string
}

// NewSegmenter returns a Segmenter matching trials on header.
func NewSegmenter(fsys fsutil.FileSystem, header []string) *Segmenter {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Segmenter{FS: fsys, Header: header}
}

// SplitFile loads path and returns its trials in file order.
func (s *Segmenter) SplitFile(path string) ([]telemetry.Trial, error) {
	f, err := s.FS.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	markers := FindMarkers(records, s.Header)
	monitoring.Logf("Header Indices: %v", markers)
	return Split(records, markers), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadRecords tokenizes a CSV stream. Rows may have differing widths and
// blank lines are dropped, so a record's position is its row index. A
// leading UTF-8 byte order mark is skipped.
func ReadRecords(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}

func normalize(cell string) string {
	return strings.ToLower(strings.TrimSpace(cell))
}

// IsMarker reports whether record equals header after trimming and
// lower-casing every cell. Width and order must match exactly.
func IsMarker(record, header []string) bool {
	if len(record) != len(header) || len(header) == 0 {
		return false
	}
	for i := range header {
		if normalize(record[i]) != normalize(header[i]) {
			return false
		}
	}
	return true
}

// FindMarkers returns the positions of the marker rows in order.
func FindMarkers(records [][]string, header []string) []int {
	var markers []int
	for i, rec := range records {
		if IsMarker(rec, header) {
			markers = append(markers, i)
		}
	}
	return markers
}

// Split slices records into one trial per marker. A trial spans the rows
// after its marker up to the next marker, the last one to end of input.
// Rows before the first marker belong to no trial.
func Split(records [][]string, markers []int) []telemetry.Trial {
	trials := make([]telemetry.Trial, 0, len(markers))
	for i, start := range markers {
		end := len(records)
		if i+1 < len(markers) {
			end = markers[i+1]
		}
		trials = append(trials, buildTrial(i+1, records[start], records, start+1, end))
	}
	return trials
}

func buildTrial(number int, marker []string, records [][]string, from, to int) telemetry.Trial {
	names := make([]string, len(marker))
	cols := make([]telemetry.Column, len(marker))
	known := make([]bool, len(marker))
	for i, cell := range marker {
		names[i] = strings.TrimSpace(cell)
		if c, err := telemetry.ParseColumn(names[i]); err == nil && c <= telemetry.ColTTC {
			cols[i], known[i] = c, true
		}
	}

	rows := make([]telemetry.Row, 0, to-from)
	for idx := from; idx < to; idx++ {
		row := telemetry.MissingRow(idx)
		rec := records[idx]
		for i := range cols {
			if !known[i] || i >= len(rec) {
				continue
			}
			row.Set(cols[i], Coerce(rec[i]))
		}
		rows = append(rows, row)
	}
	return telemetry.Trial{Number: number, Columns: names, Rows: rows}
}

// Coerce converts a cell to a number. Anything that does not parse, and
// NaN itself, becomes the missing marker.
func Coerce(cell string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return telemetry.Missing()
	}
	return v
}
