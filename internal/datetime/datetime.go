package datetime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/studentreminder/internal/domain"
)

var (
	ErrMalformedDateTime = errors.New("malformed date/time")
	ErrPastDateTime      = errors.New("date/time is not in the future")
)

// DetectFormat sniffs the time format the way the mobile forms write it:
// anything mentioning AM or PM is 12-hour.
func DetectFormat(dueTime string) domain.TimeFormat {
	if strings.Contains(dueTime, "AM") || strings.Contains(dueTime, "PM") {
		return domain.TimeFormat12h
	}
	return domain.TimeFormat24h
}

// Parse converts a due_date ("YYYY-MM-DD") and due_time pair into a local instant,
// detecting the time format from the string.
func Parse(dueDate, dueTime string) (time.Time, error) {
	return ParseWithFormat(dueDate, dueTime, domain.TimeFormatUnknown)
}

// ParseWithFormat is Parse with an explicit time format. TimeFormatUnknown
// falls back to DetectFormat.
func ParseWithFormat(dueDate, dueTime string, format domain.TimeFormat) (time.Time, error) {
	year, month, day, err := parseDate(dueDate)
	if err != nil {
		return time.Time{}, err
	}

	if format == domain.TimeFormatUnknown {
		format = DetectFormat(dueTime)
	}

	var hour, minute int
	switch format {
	case domain.TimeFormat12h:
		hour, minute, err = parse12h(dueTime)
	case domain.TimeFormat24h:
		hour, minute, err = parseClock(dueTime)
	default:
		return time.Time{}, fmt.Errorf("%w: unknown time format %q", ErrMalformedDateTime, format)
	}
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local), nil
}

// ParseReminder parses the due instant of r honouring its TimeFormat tag.
func ParseReminder(r domain.Reminder) (time.Time, error) {
	return ParseWithFormat(r.DueDate, r.DueTime, r.TimeFormat)
}

func parseDate(s string) (year, month, day int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: due date %q is not YYYY-MM-DD", ErrMalformedDateTime, s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: due date %q: %v", ErrMalformedDateTime, s, err)
		}
		nums[i] = n
	}
	year, month, day = nums[0], nums[1], nums[2]

	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("%w: month %d out of range", ErrMalformedDateTime, month)
	}
	// time.Date would roll Feb 30 over into March; reject it instead.
	if day < 1 || day > daysIn(year, month) {
		return 0, 0, 0, fmt.Errorf("%w: day %d out of range for %04d-%02d", ErrMalformedDateTime, day, year, month)
	}
	return year, month, day, nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parse12h handles "hh:mm AM" / "hh:mm PM". 12 AM is midnight, 12 PM is noon.
func parse12h(s string) (hour, minute int, err error) {
	clock, period, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return 0, 0, fmt.Errorf("%w: 12-hour time %q has no AM/PM part", ErrMalformedDateTime, s)
	}
	period = strings.TrimSpace(period)

	hour, minute, err = parseClock(clock)
	if err != nil {
		return 0, 0, err
	}
	if hour > 12 {
		return 0, 0, fmt.Errorf("%w: hour %d out of range for 12-hour time", ErrMalformedDateTime, hour)
	}

	switch period {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	default:
		return 0, 0, fmt.Errorf("%w: unknown period %q", ErrMalformedDateTime, period)
	}
	return hour, minute, nil
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q is not hh:mm", ErrMalformedDateTime, s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: hour in %q: %v", ErrMalformedDateTime, s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: minute in %q: %v", ErrMalformedDateTime, s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q out of range", ErrMalformedDateTime, s)
	}
	return hour, minute, nil
}
