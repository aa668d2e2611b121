// Package monitor tracks the physical display topology.
//
// The OS reports monitors in an unspecified order; this package imposes a
// stable reading order (rows top-to-bottom, left-to-right within a row) so
// that integer monitor selectors in config keep meaning the same display
// across reboots and re-enumerations. It also detects topology changes so
// the runtime knows when a full re-apply is needed.
package monitor

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"
)

// ErrNoMonitors is returned when enumeration finds no displays. Hosting is
// impossible without at least one monitor, so this aborts an apply pass.
var ErrNoMonitors = errors.New("no monitors detected")

// Area describes one physical display in virtual-desktop coordinates.
// Index is the stable position after normalization and is the identity
// integer monitor selectors refer to.
type Area struct {
	Index   int
	Primary bool
	Rect    image.Rectangle
	Device  string
}

// Enumerator lists the displays currently attached, already normalized.
type Enumerator interface {
	Enumerate() ([]Area, error)
}

// rowTolerance is the vertical slack for grouping monitors into one row:
// a quarter of the smallest monitor height, floored at 80px.
func rowTolerance(areas []Area) int {
	minHeight := areas[0].Rect.Dy()
	for _, a := range areas[1:] {
		if h := a.Rect.Dy(); h < minHeight {
			minHeight = h
		}
	}
	tol := minHeight / 4
	if tol < 80 {
		tol = 80
	}
	return tol
}

// Normalize sorts areas into reading order and reassigns Index 0..N.
// Rows are grouped by top coordinate within rowTolerance, ordered
// top-to-bottom, and monitors within a row ordered left-to-right.
// The input slice is not modified.
func Normalize(areas []Area) []Area {
	if len(areas) == 0 {
		return nil
	}

	sorted := make([]Area, len(areas))
	copy(sorted, areas)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rect.Min.Y < sorted[j].Rect.Min.Y
	})

	tol := rowTolerance(sorted)

	var rows [][]Area
	for _, a := range sorted {
		if len(rows) == 0 {
			rows = append(rows, []Area{a})
			continue
		}
		row := rows[len(rows)-1]
		if a.Rect.Min.Y-row[0].Rect.Min.Y <= tol {
			rows[len(rows)-1] = append(row, a)
		} else {
			rows = append(rows, []Area{a})
		}
	}

	out := make([]Area, 0, len(sorted))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].Rect.Min.X < row[j].Rect.Min.X
		})
		out = append(out, row...)
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}

// Changed reports whether the topology differs between two normalized
// enumerations: a different monitor count, or any rect differing at the
// same position.
func Changed(prev, cur []Area) bool {
	if len(prev) != len(cur) {
		return true
	}
	for i := range cur {
		if prev[i].Rect != cur[i].Rect {
			return true
		}
	}
	return false
}

// Signature returns a compact stable identifier for a normalized topology,
// used to key persisted snapshots to the layout they were taken on.
func Signature(areas []Area) string {
	parts := make([]string, len(areas))
	for i, a := range areas {
		parts[i] = fmt.Sprintf("%dx%d@%d,%d",
			a.Rect.Dx(), a.Rect.Dy(), a.Rect.Min.X, a.Rect.Min.Y)
	}
	return strings.Join(parts, "|")
}

// Union returns the bounding box covering all areas.
func Union(areas []Area) image.Rectangle {
	var box image.Rectangle
	for i, a := range areas {
		if i == 0 {
			box = a.Rect
		} else {
			box = box.Union(a.Rect)
		}
	}
	return box
}

// Primary returns the primary monitor, or the first one when the OS
// reported no primary flag.
func Primary(areas []Area) (Area, bool) {
	for _, a := range areas {
		if a.Primary {
			return a, true
		}
	}
	if len(areas) > 0 {
		return areas[0], true
	}
	return Area{}, false
}
