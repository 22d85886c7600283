package types

import "time"

// DateLayout is the layout used for calendar dates on the command line, in logs and in reports.
const DateLayout = "2006-01-02"

// Date returns the calendar date y-m-d as a UTC midnight timestamp.
// All calendar dates in this module are represented this way so that equality,
// ordering and day arithmetic behave like plain calendar dates.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of instant t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)

	return Date(local.Year(), local.Month(), local.Day())
}

// TruncateDate drops the time of day of t, keeping its own calendar fields.
func TruncateDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// AddDays moves a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}

	return t, nil
}
