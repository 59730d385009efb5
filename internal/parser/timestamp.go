package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"vessel-cbm-monitor/internal/models"
)

// CivilDate is a calendar date that may not exist in the Gregorian
// calendar (the spreadsheet 1900 system has a 29 February 1900).
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Midnight returns the start of the date in loc. 1900-02-29 normalizes
// to 1900-03-01.
func (d CivilDate) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// SerialDate converts a 1900-system spreadsheet day count into a calendar
// date: day 1 is 1900-01-01 and day 60 is the phantom 1900-02-29. Any
// fractional part is ignored.
func SerialDate(serial float64) CivilDate {
	day := int(math.Floor(serial))
	var t time.Time
	switch {
	case day == 60:
		return CivilDate{Year: 1900, Month: time.February, Day: 29}
	case day < 60:
		t = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	default:
		t = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	}
	return CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// directLayouts are tried first, as a generic ISO-8601 parse.
var directLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// explicitLayouts are tried in order after the direct parse. Day-first
// wins over month-first for ambiguous slashed dates.
var explicitLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
}

// Resolver turns heterogeneous date/time cells into instants. Zone-less
// values are interpreted in the resolver's location.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver; a nil location means UTC.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Location returns the location used for zone-less values.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve combines a date cell and an optional time cell. It returns false
// when the date cannot be interpreted; callers decide the fallback.
//
// Serials 60 and 61 resolve to the same instant, 1900-03-01: the phantom
// 1900-02-29 only survives in SerialDate(60).String().
func (r *Resolver) Resolve(date, clock models.Cell) (time.Time, bool) {
	var t time.Time
	switch date.Kind {
	case models.CellNumber:
		t = SerialDate(date.Num).Midnight(r.loc)
	case models.CellTime:
		if date.Time.IsZero() {
			return time.Time{}, false
		}
		t = date.Time
	case models.CellText:
		parsed, ok := r.parseText(strings.TrimSpace(date.Text))
		if !ok {
			return time.Time{}, false
		}
		t = parsed
	default:
		return time.Time{}, false
	}

	if offset, ok := timeOfDay(clock); ok {
		y, m, d := t.Date()
		t = time.Date(y, m, d, 0, 0, 0, 0, t.Location()).Add(offset)
	}
	return t, true
}

func (r *Resolver) parseText(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range directLayouts {
		if t, err := time.ParseInLocation(layout, s, r.loc); err == nil {
			return t, true
		}
	}
	for _, layout := range explicitLayouts {
		if t, err := time.ParseInLocation(layout, s, r.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// timeOfDay extracts an offset from midnight out of a time cell.
func timeOfDay(c models.Cell) (time.Duration, bool) {
	switch c.Kind {
	case models.CellNumber:
		// Round to the millisecond first so 0.3541666… lands on 08:30:00.
		seconds := math.Round(c.Num*86400*1000) / 1000
		if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return 0, false
		}
		return time.Duration(math.Floor(seconds)) * time.Second, true
	case models.CellText:
		text := strings.ToUpper(strings.TrimSpace(c.Text))
		meridiem := ""
		for _, suffix := range []string{"AM", "PM"} {
			if strings.HasSuffix(text, suffix) {
				meridiem = suffix
				text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
				break
			}
		}
		parts := strings.Split(text, ":")
		if len(parts) < 2 {
			return 0, false
		}
		hours, ok := leadingInt(parts[0])
		if !ok {
			return 0, false
		}
		minutes, ok := leadingInt(parts[1])
		if !ok {
			return 0, false
		}
		seconds := 0
		if len(parts) > 2 {
			if seconds, ok = leadingInt(parts[2]); !ok {
				return 0, false
			}
		}
		switch {
		case meridiem == "PM" && hours < 12:
			hours += 12
		case meridiem == "AM" && hours == 12:
			hours = 0
		}
		return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, true
	case models.CellTime:
		if c.Time.IsZero() {
			return 0, false
		}
		h, m, s := c.Time.Clock()
		return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, true
	}
	return 0, false
}

// leadingInt parses the digits at the start of s, ignoring what follows:
// "30.000" is 30.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}
