package export

import "errors"

var (
	// ErrNoColumns is returned when a selection resolves to zero POD columns.
	ErrNoColumns = errors.New("export: no PODs for selection")
	// ErrNoMeasurements is returned when a selection has no measurement in range.
	ErrNoMeasurements = errors.New("export: no measurements for selection")
	// ErrInvalidSlot is returned when a slot key or label is outside 1..96.
	ErrInvalidSlot = errors.New("export: invalid slot")
	// ErrInvalidDayKey is returned when a day key is not yyyyMMdd.
	ErrInvalidDayKey = errors.New("export: invalid day key")
	// ErrEmptySelection is returned when magnitude or file name is empty.
	ErrEmptySelection = errors.New("export: empty selection")
)
