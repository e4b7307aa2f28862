package datetime

import (
	"errors"
	"testing"
	"time"

	"github.com/tazhate/studentreminder/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		clock    string
		wantTime time.Time
		wantErr  bool
	}{
		// 24-hour
		{
			name:     "24h morning",
			date:     "2026-03-14",
			clock:    "09:05",
			wantTime: time.Date(2026, 3, 14, 9, 5, 0, 0, time.Local),
		},
		{
			name:     "24h evening",
			date:     "2026-03-14",
			clock:    "21:45",
			wantTime: time.Date(2026, 3, 14, 21, 45, 0, 0, time.Local),
		},
		{
			name:     "24h midnight",
			date:     "2026-12-31",
			clock:    "00:00",
			wantTime: time.Date(2026, 12, 31, 0, 0, 0, 0, time.Local),
		},

		// 12-hour
		{
			name:     "12 AM is midnight",
			date:     "2026-01-13",
			clock:    "12:00 AM",
			wantTime: time.Date(2026, 1, 13, 0, 0, 0, 0, time.Local),
		},
		{
			name:     "12 PM is noon",
			date:     "2026-01-13",
			clock:    "12:00 PM",
			wantTime: time.Date(2026, 1, 13, 12, 0, 0, 0, time.Local),
		},
		{
			name:     "afternoon",
			date:     "2026-01-13",
			clock:    "01:30 PM",
			wantTime: time.Date(2026, 1, 13, 13, 30, 0, 0, time.Local),
		},
		{
			name:     "morning",
			date:     "2099-01-01",
			clock:    "09:00 AM",
			wantTime: time.Date(2099, 1, 1, 9, 0, 0, 0, time.Local),
		},
		{
			name:     "12:59 AM",
			date:     "2026-01-13",
			clock:    "12:59 AM",
			wantTime: time.Date(2026, 1, 13, 0, 59, 0, 0, time.Local),
		},

		// Month is 1-based in the string
		{
			name:     "january",
			date:     "2026-01-31",
			clock:    "10:00",
			wantTime: time.Date(2026, time.January, 31, 10, 0, 0, 0, time.Local),
		},
		{
			name:     "leap day",
			date:     "2028-02-29",
			clock:    "10:00",
			wantTime: time.Date(2028, time.February, 29, 10, 0, 0, 0, time.Local),
		},

		// Malformed
		{name: "empty", date: "", clock: "", wantErr: true},
		{name: "slashes", date: "2026/01/13", clock: "10:00", wantErr: true},
		{name: "month 13", date: "2026-13-01", clock: "10:00", wantErr: true},
		{name: "feb 30", date: "2026-02-30", clock: "10:00", wantErr: true},
		{name: "letters in hour", date: "2026-01-13", clock: "ab:00", wantErr: true},
		{name: "no minutes", date: "2026-01-13", clock: "10", wantErr: true},
		{name: "hour 24", date: "2026-01-13", clock: "24:00", wantErr: true},
		{name: "13 PM", date: "2026-01-13", clock: "13:00 PM", wantErr: true},
		{name: "period glued", date: "2026-01-13", clock: "10:00PM", wantErr: true},
		{name: "lowercase period is 24h", date: "2026-01-13", clock: "10:00 pm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.date, tt.clock)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q, %q) = %v, want error", tt.date, tt.clock, got)
				}
				if !errors.Is(err, ErrMalformedDateTime) {
					t.Fatalf("expected ErrMalformedDateTime, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q, %q) unexpected error: %v", tt.date, tt.clock, err)
			}
			if !got.Equal(tt.wantTime) {
				t.Errorf("Parse(%q, %q) = %v, want %v", tt.date, tt.clock, got, tt.wantTime)
			}
		})
	}
}

func TestParse24hKeepsHourAndMinute(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		for _, minute := range []int{0, 1, 29, 30, 59} {
			clock := time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
			got, err := Parse("2030-06-15", clock)
			if err != nil {
				t.Fatalf("Parse(%q): %v", clock, err)
			}
			if got.Hour() != hour || got.Minute() != minute {
				t.Fatalf("Parse(%q) = %02d:%02d", clock, got.Hour(), got.Minute())
			}
			if got.Location() != time.Local {
				t.Fatalf("expected local time, got %v", got.Location())
			}
		}
	}
}

func TestParseWithFormat(t *testing.T) {
	// An explicit tag wins over sniffing.
	if _, err := ParseWithFormat("2026-01-13", "10:00", domain.TimeFormat12h); err == nil {
		t.Fatal("expected error for 24h string tagged as 12h")
	}
	got, err := ParseWithFormat("2026-01-13", "07:15 PM", domain.TimeFormat12h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 19 || got.Minute() != 15 {
		t.Fatalf("got %v, want 19:15", got)
	}
	if _, err := ParseWithFormat("2026-01-13", "10:00", domain.TimeFormat("iso")); !errors.Is(err, ErrMalformedDateTime) {
		t.Fatalf("expected ErrMalformedDateTime for unknown format, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]domain.TimeFormat{
		"09:00 AM": domain.TimeFormat12h,
		"9:00 PM":  domain.TimeFormat12h,
		"21:00":    domain.TimeFormat24h,
		"":         domain.TimeFormat24h,
	}
	for in, want := range tests {
		if got := DetectFormat(in); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidator(t *testing.T) {
	now := time.Date(2026, 1, 13, 10, 0, 0, 0, time.Local)
	v := &Validator{Now: func() time.Time { return now }}

	if v.IsFuture(now) {
		t.Error("instant equal to now must not be future")
	}
	if v.IsFuture(now.Add(-time.Nanosecond)) {
		t.Error("past instant must not be future")
	}
	if !v.IsFuture(now.Add(time.Nanosecond)) {
		t.Error("instant after now must be future")
	}
	if err := v.Check(now); !errors.Is(err, ErrPastDateTime) {
		t.Errorf("Check(now) = %v, want ErrPastDateTime", err)
	}
	if err := v.Check(now.Add(time.Minute)); err != nil {
		t.Errorf("Check(future) = %v", err)
	}
}

func TestValidatorReadsClockEveryCall(t *testing.T) {
	now := time.Date(2026, 1, 13, 10, 0, 0, 0, time.Local)
	v := &Validator{Now: func() time.Time { return now }}
	instant := now.Add(time.Minute)

	if !v.IsFuture(instant) {
		t.Fatal("expected future")
	}
	now = now.Add(2 * time.Minute)
	if v.IsFuture(instant) {
		t.Fatal("expected past after the clock moved")
	}
}
