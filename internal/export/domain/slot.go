package export

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// SlotsPerDay is the number of quarter-hour slots in a calendar day.
	SlotsPerDay = 96
	// SlotMinutes is the width of one slot.
	SlotMinutes    = 15
	slotsPerHour   = 60 / SlotMinutes
	minutesPerHour = 60
)

// SlotLabel renders a 1-based slot as the "HH:MM" time at which it starts.
// It panics when slot is outside 1..96.
func SlotLabel(slot int) string {
	mustSlot(slot)
	idx := slot - 1
	return fmt.Sprintf("%02d:%02d", idx/slotsPerHour, idx%slotsPerHour*SlotMinutes)
}

// SlotKey renders a slot as the 2-digit key used in storage and cell keys.
// It panics when slot is outside 1..96.
func SlotKey(slot int) string {
	mustSlot(slot)
	return fmt.Sprintf("%02d", slot)
}

// ParseSlotKey parses a stored slot key such as "07".
func ParseSlotKey(key string) (int, error) {
	slot, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || !validSlot(slot) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, key)
	}
	return slot, nil
}

// ParseSlotLabel is the inverse of SlotLabel.
func ParseSlotLabel(label string) (int, error) {
	hh, mm, ok := strings.Cut(label, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, label)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, label)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes%SlotMinutes != 0 || minutes >= minutesPerHour {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, label)
	}
	slot := hours*slotsPerHour + minutes/SlotMinutes + 1
	if !validSlot(slot) || hours < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, label)
	}
	return slot, nil
}

func validSlot(slot int) bool {
	return slot >= 1 && slot <= SlotsPerDay
}

func mustSlot(slot int) {
	if !validSlot(slot) {
		panic(fmt.Sprintf("export: slot %d out of range 1..%d", slot, SlotsPerDay))
	}
}
