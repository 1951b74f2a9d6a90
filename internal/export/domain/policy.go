package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decision is the outcome of resolving a tuple against the stored cell.
type Decision int

const (
	// DecisionStore stores the candidate into an empty cell.
	DecisionStore Decision = iota
	// DecisionReplace overwrites a zero placeholder.
	DecisionReplace
	// DecisionAnomaly discards the candidate and reports it.
	DecisionAnomaly
	// DecisionIgnore discards the candidate silently.
	DecisionIgnore
)

func (d Decision) String() string {
	switch d {
	case DecisionStore:
		return "store"
	case DecisionReplace:
		return "replace"
	case DecisionAnomaly:
		return "anomaly"
	case DecisionIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// DuplicatePolicy decides which tuple wins a (day, slot, POD) cell.
//
// The first tuple seen is kept unless its value is exactly zero, in which case
// a later tuple may replace it. Once a non-zero value is stored every further
// tuple is discarded; FlagZeroAfterValue controls whether a discarded zero is
// reported as an anomaly or dropped silently.
type DuplicatePolicy struct {
	FlagZeroAfterValue bool
}

// DefaultDuplicatePolicy reports every discarded tuple.
var DefaultDuplicatePolicy = DuplicatePolicy{FlagZeroAfterValue: true}

// Resolve decides what to do with candidate given the stored cell, if any.
func (p DuplicatePolicy) Resolve(stored Cell, hasStored bool, candidate Cell) Decision {
	if !hasStored {
		return DecisionStore
	}
	if stored.Value == 0 {
		return DecisionReplace
	}
	if candidate.Value == 0 && !p.FlagZeroAfterValue {
		return DecisionIgnore
	}
	return DecisionAnomaly
}

// DuplicateValueAnomaly describes a tuple discarded because the cell already
// held a real reading.
type DuplicateValueAnomaly struct {
	Key       CellKey
	Stored    Cell
	Discarded Cell
}

func (a DuplicateValueAnomaly) String() string {
	return fmt.Sprintf("duplicate value day=%s slot=%02d pod=%s stored=%s discarded=%s",
		a.Key.DayKey, a.Key.Slot, a.Key.POD, a.Stored, a.Discarded)
}

// FormatValue renders v the way the historical CSV files carry values:
// plain decimals with at least one fractional digit inside [1e-3, 1e7),
// scientific notation ("1.0E7", "2.5E-4") outside it.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(v, 'E', -1, 64), "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	n, err := strconv.Atoi(exp)
	if err != nil {
		return mantissa + "E" + exp
	}
	return mantissa + "E" + strconv.Itoa(n)
}
