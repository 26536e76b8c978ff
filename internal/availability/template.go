package availability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
)

var ErrInvalidTemplate = fmt.Errorf("%w: invalid availability template", calendar.ErrConfiguration)

// Interval is a closed-open range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Contains tests the start instant t against [Start, End).
func (i Interval) Contains(t int) bool {
	return i.Start <= t && t < i.End
}

// WorkingHours is the configuration of one weekday.
type WorkingHours struct {
	Start int
	End   int
	Break *Interval
}

// Covers reports whether a slot starting at t is inside working hours and outside the break.
// Only the start instant is tested: a slot that starts before a boundary and runs past it
// counts as available when granularity and boundaries are misaligned.
func (h WorkingHours) Covers(t int) bool {
	if !(Interval{Start: h.Start, End: h.End}).Contains(t) {
		return false
	}
	if h.Break != nil && h.Break.Contains(t) {
		return false
	}
	return true
}

func (h WorkingHours) validate(day time.Weekday) error {
	if h.Start < 0 || h.End > 24*60 || h.Start >= h.End {
		return fmt.Errorf("%w: %s hours %s-%s", ErrInvalidTemplate, day,
			calendar.FormatMinutes(h.Start), calendar.FormatMinutes(h.End))
	}
	if b := h.Break; b != nil {
		if b.Start < h.Start || b.Start >= b.End || b.End > h.End {
			return fmt.Errorf("%w: %s break %s-%s outside %s-%s", ErrInvalidTemplate, day,
				calendar.FormatMinutes(b.Start), calendar.FormatMinutes(b.End),
				calendar.FormatMinutes(h.Start), calendar.FormatMinutes(h.End))
		}
	}
	return nil
}

// Template is a reusable per-weekday working-hours configuration.
// A weekday missing from PerWeekday is a day off.
type Template struct {
	Name       string
	PerWeekday map[time.Weekday]WorkingHours
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	for day, hours := range t.PerWeekday {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: weekday %d", ErrInvalidTemplate, day)
		}
		if err := hours.validate(day); err != nil {
			return err
		}
	}
	return nil
}

// Hours returns the working hours of day, if it is a working day.
func (t Template) Hours(day time.Weekday) (WorkingHours, bool) {
	h, ok := t.PerWeekday[day]
	return h, ok
}

// TemplateSpec is the wire and file representation of a Template, with HH:MM times.
type TemplateSpec struct {
	Name string               `json:"name" yaml:"name"`
	Days map[string]HoursSpec `json:"days" yaml:"days"`
}

type HoursSpec struct {
	Start string        `json:"start" yaml:"start"`
	End   string        `json:"end" yaml:"end"`
	Break *IntervalSpec `json:"break,omitempty" yaml:"break,omitempty"`
}

type IntervalSpec struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Template parses and validates the spec.
func (s TemplateSpec) Template() (Template, error) {
	tmpl := Template{
		Name:       s.Name,
		PerWeekday: make(map[time.Weekday]WorkingHours, len(s.Days)),
	}
	for name, hs := range s.Days {
		day, err := calendar.ParseWeekday(name)
		if err != nil {
			return Template{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		if _, dup := tmpl.PerWeekday[day]; dup {
			return Template{}, fmt.Errorf("%w: %s listed twice", ErrInvalidTemplate, day)
		}
		hours, err := hs.hours()
		if err != nil {
			return Template{}, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, day, err)
		}
		tmpl.PerWeekday[day] = hours
	}
	if err := tmpl.Validate(); err != nil {
		return Template{}, err
	}
	return tmpl, nil
}

func (h HoursSpec) hours() (WorkingHours, error) {
	var out WorkingHours
	var err error
	if out.Start, err = calendar.ParseMinutes(h.Start); err != nil {
		return out, err
	}
	if out.End, err = calendar.ParseMinutes(h.End); err != nil {
		return out, err
	}
	if h.Break != nil {
		var b Interval
		if b.Start, err = calendar.ParseMinutes(h.Break.Start); err != nil {
			return out, err
		}
		if b.End, err = calendar.ParseMinutes(h.Break.End); err != nil {
			return out, err
		}
		out.Break = &b
	}
	return out, nil
}

// Spec renders the template back into its HH:MM form.
func (t Template) Spec() TemplateSpec {
	spec := TemplateSpec{Name: t.Name, Days: make(map[string]HoursSpec, len(t.PerWeekday))}
	for day, h := range t.PerWeekday {
		hs := HoursSpec{Start: calendar.FormatMinutes(h.Start), End: calendar.FormatMinutes(h.End)}
		if h.Break != nil {
			hs.Break = &IntervalSpec{Start: calendar.FormatMinutes(h.Break.Start), End: calendar.FormatMinutes(h.Break.End)}
		}
		spec.Days[strings.ToLower(day.String())] = hs
	}
	return spec
}

func (t Template) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Spec())
}

func (t *Template) UnmarshalJSON(data []byte) error {
	var spec TemplateSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}
	parsed, err := spec.Template()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// WorkingDays lists the weekdays covered by the template in week order from Sunday.
func (t Template) WorkingDays() []time.Weekday {
	days := make([]time.Weekday, 0, len(t.PerWeekday))
	for d := range t.PerWeekday {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}
