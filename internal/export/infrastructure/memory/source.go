package memory

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	export "quarterhour-export/internal/export/domain"
)

// Source is an in-memory measurement source for dry runs and tests.
// Tuples are kept per selection name.
type Source struct {
	mu   sync.RWMutex
	data map[string][]export.MeasurementTuple
}

// NewSource constructs an empty source.
func NewSource() *Source {
	return &Source{data: make(map[string][]export.MeasurementTuple)}
}

// Add appends tuples to the partition named name (<fileName>_<magnitude>).
func (s *Source) Add(name string, tuples ...export.MeasurementTuple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append(s.data[name], tuples...)
}

// DistinctPODs returns the PODs with tuples in range, ascending.
func (s *Source) DistinctPODs(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tuple := range s.data[sel.Name()] {
		if inRange(tuple.DayKey, fromDayKey, toDayKey) {
			seen[tuple.POD] = struct{}{}
		}
	}
	pods := make([]string, 0, len(seen))
	for pod := range seen {
		pods = append(pods, pod)
	}
	sort.Strings(pods)
	return pods, nil
}

// HasMeasurements reports whether any tuple matches.
func (s *Source) HasMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := podSet(pods)
	for _, tuple := range s.data[sel.Name()] {
		if _, ok := allowed[tuple.POD]; ok && inRange(tuple.DayKey, fromDayKey, toDayKey) {
			return true, nil
		}
	}
	return false, nil
}

// StreamMeasurements calls fn in (dayKey, slot, pod, measType) order.
func (s *Source) StreamMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string, fn func(export.MeasurementTuple) error) error {
	s.mu.RLock()
	allowed := podSet(pods)
	matched := make([]export.MeasurementTuple, 0)
	for _, tuple := range s.data[sel.Name()] {
		if _, ok := allowed[tuple.POD]; ok && inRange(tuple.DayKey, fromDayKey, toDayKey) {
			matched = append(matched, tuple)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.DayKey != b.DayKey {
			return a.DayKey < b.DayKey
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.POD != b.POD {
			return a.POD < b.POD
		}
		return a.MeasType < b.MeasType
	})
	for _, tuple := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(tuple); err != nil {
			return err
		}
	}
	return nil
}

// LoadFixture reads a ';'-separated fixture file into partition name.
// Each line is dayKey;slot;pod;measType;value. Blank lines and lines
// starting with '#' are skipped.
func (s *Source) LoadFixture(name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	tuples, err := ParseFixture(file)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	s.Add(name, tuples...)
	return nil
}

// ParseFixture parses fixture lines from r.
func ParseFixture(r io.Reader) ([]export.MeasurementTuple, error) {
	var tuples []export.MeasurementTuple
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, ";")
		if len(fields) != 5 {
			return nil, fmt.Errorf("line %d: expected 5 fields, got %d", line, len(fields))
		}
		if _, err := export.ParseDayKey(fields[0]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		slot, err := export.ParseSlotKey(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", line, fields[4])
		}
		tuples = append(tuples, export.MeasurementTuple{
			DayKey:   fields[0],
			Slot:     slot,
			POD:      strings.TrimSpace(fields[2]),
			MeasType: strings.TrimSpace(fields[3]),
			Value:    value,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tuples, nil
}

func inRange(dayKey, fromDayKey, toDayKey string) bool {
	return dayKey >= fromDayKey && dayKey < toDayKey
}

func podSet(pods []string) map[string]struct{} {
	set := make(map[string]struct{}, len(pods))
	for _, pod := range pods {
		set[pod] = struct{}{}
	}
	return set
}
