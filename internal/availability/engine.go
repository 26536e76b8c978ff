package availability

import (
	"fmt"

	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
)

// ApplyTemplate sets IsWorkingDay and every slot's Available flag of week from tmpl.
// Booked slots are left unavailable.
func ApplyTemplate(week *calendar.WeekSchedule, tmpl Template) {
	for i := range week.Days {
		ApplyTemplateToDay(&week.Days[i], tmpl)
	}
}

func ApplyTemplateToDay(day *calendar.Day, tmpl Template) {
	hours, ok := tmpl.Hours(day.DayOfWeek)
	day.IsWorkingDay = ok
	for i := range day.Slots {
		slot := &day.Slots[i]
		if slot.Booked() {
			slot.Available = false
			continue
		}
		slot.Available = ok && hours.Covers(slot.Time)
	}
}

// ToggleSlot flips the availability of the slot starting at t without touching IsWorkingDay.
func ToggleSlot(day *calendar.Day, t int) error {
	idx := day.Slot(t)
	if idx < 0 {
		return fmt.Errorf("%w: %s %s", ErrSlotNotFound, day.Date.Format("2006-01-02"), calendar.FormatMinutes(t))
	}
	slot := &day.Slots[idx]
	if slot.Booked() {
		return fmt.Errorf("%w: slot %s is booked", ErrSlotUnavailable, slot.Label())
	}
	if !day.IsWorkingDay {
		return fmt.Errorf("%w: %s is not a working day", ErrSlotUnavailable, day.Date.Format("2006-01-02"))
	}
	slot.Available = !slot.Available
	return nil
}

// ToggleDay flips IsWorkingDay and cascades the new value to every slot of the day.
// Any previous per-slot customization of the day is discarded.
func ToggleDay(day *calendar.Day) error {
	return SetWorkingDay(day, !day.IsWorkingDay)
}

// SetWorkingDay forces the working state of day and resets every slot to match it.
func SetWorkingDay(day *calendar.Day, working bool) error {
	if !working && day.HasBookings() {
		return fmt.Errorf("%w: %s has booked slots", ErrSlotUnavailable, day.Date.Format("2006-01-02"))
	}
	day.IsWorkingDay = working
	for i := range day.Slots {
		if day.Slots[i].Booked() {
			continue
		}
		day.Slots[i].Available = working
	}
	return nil
}
