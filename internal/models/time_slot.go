package models

import "sort"

// Shift is one of the two daily teaching windows.
type Shift string

const (
	ShiftMorning   Shift = "MORNING"
	ShiftAfternoon Shift = "AFTERNOON"
)

// TimeSlot is a numbered pair inside a shift.
type TimeSlot struct {
	ID         string `db:"id" json:"id"`
	Shift      Shift  `db:"shift" json:"shift"`
	PairNumber int    `db:"pair_number" json:"pair_number"`
	StartTime  string `db:"start_time" json:"start_time"`
	EndTime    string `db:"end_time" json:"end_time"`
}

// SlotOrdering maps time slots to their position inside a teaching day.
type SlotOrdering struct {
	ordinal   map[string]int
	lastPair  map[Shift]int
	firstPair map[Shift]int
}

func shiftRank(s Shift) int {
	switch s {
	case ShiftMorning:
		return 0
	case ShiftAfternoon:
		return 1
	default:
		return 2
	}
}

// NewSlotOrdering sorts slots by shift then pair number; the first slot of the day is ordinal 1.
func NewSlotOrdering(slots []TimeSlot) SlotOrdering {
	sorted := make([]TimeSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if shiftRank(sorted[i].Shift) == shiftRank(sorted[j].Shift) {
			return sorted[i].PairNumber < sorted[j].PairNumber
		}
		return shiftRank(sorted[i].Shift) < shiftRank(sorted[j].Shift)
	})

	ordering := SlotOrdering{
		ordinal:   make(map[string]int, len(sorted)),
		lastPair:  make(map[Shift]int),
		firstPair: make(map[Shift]int),
	}
	for idx, slot := range sorted {
		ordering.ordinal[slot.ID] = idx + 1
		if slot.PairNumber > ordering.lastPair[slot.Shift] {
			ordering.lastPair[slot.Shift] = slot.PairNumber
		}
		if first, ok := ordering.firstPair[slot.Shift]; !ok || slot.PairNumber < first {
			ordering.firstPair[slot.Shift] = slot.PairNumber
		}
	}
	return ordering
}

// Ordinal returns the daily position of a slot, or 0 when the slot is unknown.
func (o SlotOrdering) Ordinal(slotID string) int {
	return o.ordinal[slotID]
}

// IsFirstOfShift reports whether the pair opens its shift.
func (o SlotOrdering) IsFirstOfShift(shift Shift, pair int) bool {
	first, ok := o.firstPair[shift]
	if !ok {
		return pair == 1
	}
	return pair == first
}

// IsLastOfShift reports whether the pair closes its shift.
func (o SlotOrdering) IsLastOfShift(shift Shift, pair int) bool {
	last, ok := o.lastPair[shift]
	return ok && pair == last
}
