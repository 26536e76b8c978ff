// Package calendar builds the weekly slot grid of a provider.
//
// Generation is pure: "today" is always passed in by the caller so the same
// inputs produce structurally identical grids.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

const DaysPerWeek = 7

const minutesPerDay = 24 * 60

var ErrConfiguration = errors.New("invalid grid configuration")

// GridParams describes the shape of every generated day.
type GridParams struct {
	GranularityMinutes int
	DayStartMinutes    int
	DayEndMinutes      int
	WeekStart          time.Weekday
}

// DefaultGridParams is a 09:00-17:00 day in 30 minute slots, weeks starting on Monday.
func DefaultGridParams() GridParams {
	return GridParams{
		GranularityMinutes: 30,
		DayStartMinutes:    9 * 60,
		DayEndMinutes:      17 * 60,
		WeekStart:          time.Monday,
	}
}

func (p GridParams) Validate() error {
	if p.GranularityMinutes <= 0 || 60%p.GranularityMinutes != 0 {
		return fmt.Errorf("%w: granularity %d must be a positive divisor of 60", ErrConfiguration, p.GranularityMinutes)
	}
	if p.DayStartMinutes < 0 || p.DayEndMinutes > minutesPerDay {
		return fmt.Errorf("%w: day bounds %d-%d outside 00:00-24:00", ErrConfiguration, p.DayStartMinutes, p.DayEndMinutes)
	}
	if p.DayStartMinutes >= p.DayEndMinutes {
		return fmt.Errorf("%w: day start %s must be before day end %s",
			ErrConfiguration, FormatMinutes(p.DayStartMinutes), FormatMinutes(p.DayEndMinutes))
	}
	if p.WeekStart < time.Sunday || p.WeekStart > time.Saturday {
		return fmt.Errorf("%w: week start %d", ErrConfiguration, p.WeekStart)
	}
	return nil
}

// SlotsPerDay is the number of slots between day start and day end.
func (p GridParams) SlotsPerDay() int {
	return (p.DayEndMinutes - p.DayStartMinutes) / p.GranularityMinutes
}

// ContainsSlot reports whether t is the start of a grid slot.
func (p GridParams) ContainsSlot(t int) bool {
	if t < p.DayStartMinutes || t+p.GranularityMinutes > p.DayEndMinutes {
		return false
	}
	return (t-p.DayStartMinutes)%p.GranularityMinutes == 0
}

// StartOfWeek shifts reference back to the configured first weekday.
func (p GridParams) StartOfWeek(reference time.Time) time.Time {
	d := DateOf(reference)
	shift := (int(d.Weekday()) - int(p.WeekStart) + DaysPerWeek) % DaysPerWeek
	return d.AddDate(0, 0, -shift)
}

// WeekStartFor returns the first date of the week weekOffset weeks away from reference.
func (p GridParams) WeekStartFor(weekOffset int, reference time.Time) time.Time {
	return p.StartOfWeek(reference).AddDate(0, 0, weekOffset*DaysPerWeek)
}

// WeekOffsetOf returns the offset of the week containing date relative to reference.
func (p GridParams) WeekOffsetOf(date, reference time.Time) int {
	// both starts fall on the same weekday in UTC, so the difference is whole weeks
	days := int(p.StartOfWeek(date).Sub(p.StartOfWeek(reference)).Hours() / 24)
	return days / DaysPerWeek
}

// GenerateWeek emits seven consecutive days, each with every slot unavailable.
func GenerateWeek(p GridParams, weekOffset int, reference time.Time) (WeekSchedule, error) {
	if err := p.Validate(); err != nil {
		return WeekSchedule{}, err
	}

	start := p.WeekStartFor(weekOffset, reference)
	week := WeekSchedule{
		WeekOffset: weekOffset,
		Days:       make([]Day, 0, DaysPerWeek),
	}
	for i := 0; i < DaysPerWeek; i++ {
		week.Days = append(week.Days, generateDay(p, start.AddDate(0, 0, i)))
	}
	return week, nil
}

// GenerateDay builds a single empty day for date.
func GenerateDay(p GridParams, date time.Time) (Day, error) {
	if err := p.Validate(); err != nil {
		return Day{}, err
	}
	return generateDay(p, DateOf(date)), nil
}

func generateDay(p GridParams, date time.Time) Day {
	slots := make([]TimeSlot, 0, p.SlotsPerDay())
	for t := p.DayStartMinutes; t+p.GranularityMinutes <= p.DayEndMinutes; t += p.GranularityMinutes {
		slots = append(slots, TimeSlot{Time: t})
	}
	return Day{
		Date:      date,
		DayOfWeek: date.Weekday(),
		Slots:     slots,
	}
}
