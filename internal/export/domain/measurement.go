package export

import (
	"sort"
	"time"
)

// Selection identifies the dataset partition and date range of one run.
type Selection struct {
	Magnitude string
	FileName  string
	Start     time.Time
	End       time.Time
}

// Validate checks that the partition identifiers are set.
func (s Selection) Validate() error {
	if s.Magnitude == "" || s.FileName == "" {
		return ErrEmptySelection
	}
	return nil
}

// Name is the partition name, <fileName>_<magnitude>. It names both the
// source collection and the output file.
func (s Selection) Name() string { return s.FileName + "_" + s.Magnitude }

// StartKey returns the inclusive start as yyyyMMdd.
func (s Selection) StartKey() string { return FormatDayKey(s.Start) }

// EndKey returns the exclusive end as yyyyMMdd.
func (s Selection) EndKey() string { return FormatDayKey(s.End) }

// MeasurementTuple is one stored quarter-hour reading.
type MeasurementTuple struct {
	DayKey   string
	Slot     int
	POD      string
	MeasType string
	Value    float64
}

// Cell returns the value part of the tuple.
func (m MeasurementTuple) Cell() Cell {
	return Cell{Value: m.Value, MeasType: m.MeasType}
}

// CellKey identifies one grid cell.
type CellKey struct {
	DayKey string
	Slot   int
	POD    string
}

// Key returns the cell key of the tuple.
func (m MeasurementTuple) Key() CellKey {
	return CellKey{DayKey: m.DayKey, Slot: m.Slot, POD: m.POD}
}

// Cell is a resolved grid value.
type Cell struct {
	Value    float64
	MeasType string
}

// String renders the cell as "<value>_<measType>".
func (c Cell) String() string { return FormatValue(c.Value) + "_" + c.MeasType }

// ColumnSet is the ordered, distinct list of PODs that become CSV columns.
type ColumnSet struct {
	pods []string
}

// NewColumnSet sorts and deduplicates pods. It returns ErrNoColumns when
// nothing is left.
func NewColumnSet(pods []string) (ColumnSet, error) {
	seen := make(map[string]struct{}, len(pods))
	out := make([]string, 0, len(pods))
	for _, pod := range pods {
		if pod == "" {
			continue
		}
		if _, ok := seen[pod]; ok {
			continue
		}
		seen[pod] = struct{}{}
		out = append(out, pod)
	}
	if len(out) == 0 {
		return ColumnSet{}, ErrNoColumns
	}
	sort.Strings(out)
	return ColumnSet{pods: out}, nil
}

// PODs returns a copy of the column order.
func (c ColumnSet) PODs() []string {
	out := make([]string, len(c.pods))
	copy(out, c.pods)
	return out
}

// Len returns the number of columns.
func (c ColumnSet) Len() int { return len(c.pods) }

// At returns the POD of column i.
func (c ColumnSet) At(i int) string { return c.pods[i] }

// DayGrid is the dense 96 x N grid of one day. Rows[i] holds slot i+1; an
// empty string marks a missing cell.
type DayGrid struct {
	Window  DayWindow
	Columns ColumnSet
	Rows    [][]string
}

// RowLabel returns the "yyyy-MM-dd HH:MM" label of row i.
func (g DayGrid) RowLabel(i int) string {
	return g.Window.Display() + " " + SlotLabel(i+1)
}

// Diagnostics accumulates PODs that had at least one missing cell.
type Diagnostics struct {
	missing map[string]int
}

// NewDiagnostics constructs an empty set.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{missing: make(map[string]int)}
}

// AddMissing records one missing cell for pod.
func (d *Diagnostics) AddMissing(pod string) {
	d.missing[pod]++
}

// PODs returns the PODs with missing cells in ascending order.
func (d *Diagnostics) PODs() []string {
	out := make([]string, 0, len(d.missing))
	for pod := range d.missing {
		out = append(out, pod)
	}
	sort.Strings(out)
	return out
}

// MissingCells returns how many cells of pod were missing.
func (d *Diagnostics) MissingCells(pod string) int { return d.missing[pod] }

// TotalMissing returns the missing cell count across all PODs.
func (d *Diagnostics) TotalMissing() int {
	total := 0
	for _, n := range d.missing {
		total += n
	}
	return total
}

// Len returns the number of PODs with missing cells.
func (d *Diagnostics) Len() int { return len(d.missing) }
