package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is one fixed-duration cell of a Day.
// AppointmentRef is set only while the slot is booked, and then Available is false.
type TimeSlot struct {
	Time           int        `json:"time"` // minutes since midnight
	Available      bool       `json:"available"`
	AppointmentRef *uuid.UUID `json:"appointment_ref,omitempty"`
}

// Label renders the slot start as HH:MM.
func (s TimeSlot) Label() string {
	return FormatMinutes(s.Time)
}

// Booked reports whether an appointment occupies the slot.
func (s TimeSlot) Booked() bool {
	return s.AppointmentRef != nil
}

type Day struct {
	Date         time.Time    `json:"date"`
	DayOfWeek    time.Weekday `json:"day_of_week"`
	IsWorkingDay bool         `json:"is_working_day"`
	Slots        []TimeSlot   `json:"slots"`
}

// Slot returns the index of the slot starting at minute t, or -1.
func (d *Day) Slot(t int) int {
	for i := range d.Slots {
		if d.Slots[i].Time == t {
			return i
		}
	}
	return -1
}

// HasBookings reports whether any slot of the day carries an appointment.
func (d *Day) HasBookings() bool {
	for _, s := range d.Slots {
		if s.Booked() {
			return true
		}
	}
	return false
}

// WeekSchedule is the 7-day grid of one provider for one week offset.
type WeekSchedule struct {
	ProviderID uuid.UUID `json:"provider_id"`
	WeekOffset int       `json:"week_offset"`
	Version    uint64    `json:"version"`
	Days       []Day     `json:"days"`
}

// Start returns the first date of the week.
func (w *WeekSchedule) Start() time.Time {
	if len(w.Days) == 0 {
		return time.Time{}
	}
	return w.Days[0].Date
}

// Day returns the index of the day with the given date, or -1.
func (w *WeekSchedule) Day(date time.Time) int {
	date = DateOf(date)
	for i := range w.Days {
		if w.Days[i].Date.Equal(date) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy; AppointmentRef pointers are not shared.
func (w WeekSchedule) Clone() WeekSchedule {
	out := w
	out.Days = make([]Day, len(w.Days))
	for i, d := range w.Days {
		nd := d
		nd.Slots = make([]TimeSlot, len(d.Slots))
		for j, s := range d.Slots {
			ns := s
			if s.AppointmentRef != nil {
				ref := *s.AppointmentRef
				ns.AppointmentRef = &ref
			}
			nd.Slots[j] = ns
		}
		out.Days[i] = nd
	}
	return out
}

// DateOf truncates t to its UTC calendar date. Grid dates are UTC midnights and
// slot times are minutes past them, whatever the process time zone.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatMinutes renders minutes since midnight as HH:MM.
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMinutes accepts either "HH:MM" or a plain minute count.
func ParseMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		m, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q: %w", s, err)
		}
		return m, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseWeekday accepts english weekday names and their three-letter forms.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
