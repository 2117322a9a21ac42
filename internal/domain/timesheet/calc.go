package timesheet

import "time"

// DurationMinutes returns end-start in whole minutes, rounded down.
func DurationMinutes(start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, ErrInvalidInterval
	}
	return int(end.Sub(start) / time.Minute), nil
}

// TotalBreakMinutes sums closed breaks. Open breaks count as zero.
func TotalBreakMinutes(breaks []Break) int {
	total := 0
	for _, b := range breaks {
		if b.EndTime == nil {
			continue
		}
		if b.Duration != nil {
			total += *b.Duration
			continue
		}
		if minutes, err := DurationMinutes(b.StartTime, *b.EndTime); err == nil {
			total += minutes
		}
	}
	return total
}

// TotalWorkMinutes is the shift length minus breaks, clamped at zero.
func TotalWorkMinutes(clockIn, clockOut time.Time, breaks []Break) (int, error) {
	shift, err := DurationMinutes(clockIn, clockOut)
	if err != nil {
		return 0, err
	}
	return max(0, shift-TotalBreakMinutes(breaks)), nil
}

// WeekTotal sums work minutes of entries dated within [weekStart, weekEnd].
// Entries without both punches contribute nothing.
func WeekTotal(entries []TimeEntry, weekStart, weekEnd time.Time) int {
	total := 0
	for _, e := range entries {
		if e.Date.Before(weekStart) || e.Date.After(weekEnd) {
			continue
		}
		if e.ClockIn == nil || e.ClockOut == nil {
			continue
		}
		minutes, err := TotalWorkMinutes(*e.ClockIn, *e.ClockOut, e.Breaks)
		if err != nil {
			continue
		}
		total += minutes
	}
	return total
}

// WeekBounds returns the first and last calendar day of the week containing date.
func WeekBounds(date time.Time, startDay time.Weekday) (time.Time, time.Time) {
	day := dateOnly(date)
	offset := (int(day.Weekday()) - int(startDay) + 7) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// DateOf is the calendar day of t in loc, expressed as UTC midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return dateOnly(t.In(loc))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
