package export

import (
	"errors"
	"testing"
)

func TestSlotLabelCoversDay(t *testing.T) {
	prev := ""
	for slot := 1; slot <= SlotsPerDay; slot++ {
		label := SlotLabel(slot)
		if prev != "" && label <= prev {
			t.Fatalf("label %q for slot %d not after %q", label, slot, prev)
		}
		prev = label
		back, err := ParseSlotLabel(label)
		if err != nil {
			t.Fatalf("parse label %q: %v", label, err)
		}
		if back != slot {
			t.Fatalf("round trip slot %d via %q got %d", slot, label, back)
		}
	}
	if got := SlotLabel(1); got != "00:00" {
		t.Fatalf("slot 1 label = %q", got)
	}
	if got := SlotLabel(5); got != "01:00" {
		t.Fatalf("slot 5 label = %q", got)
	}
	if got := SlotLabel(96); got != "23:45" {
		t.Fatalf("slot 96 label = %q", got)
	}
}

func TestSlotKey(t *testing.T) {
	if got := SlotKey(1); got != "01" {
		t.Fatalf("slot key = %q", got)
	}
	if got := SlotKey(96); got != "96" {
		t.Fatalf("slot key = %q", got)
	}
	slot, err := ParseSlotKey("07")
	if err != nil || slot != 7 {
		t.Fatalf("parse slot key: %d %v", slot, err)
	}
	for _, bad := range []string{"00", "97", "x1", ""} {
		if _, err := ParseSlotKey(bad); !errors.Is(err, ErrInvalidSlot) {
			t.Fatalf("parse %q: expected ErrInvalidSlot, got %v", bad, err)
		}
	}
}

func TestParseSlotLabelRejectsOffGrid(t *testing.T) {
	for _, bad := range []string{"00:10", "24:00", "1:00", "12-00", "23:60"} {
		if _, err := ParseSlotLabel(bad); !errors.Is(err, ErrInvalidSlot) {
			t.Fatalf("parse %q: expected ErrInvalidSlot, got %v", bad, err)
		}
	}
}

func TestSlotLabelPanicsOutOfRange(t *testing.T) {
	for _, slot := range []int{0, 97, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for slot %d", slot)
				}
			}()
			_ = SlotLabel(slot)
		}()
	}
}
