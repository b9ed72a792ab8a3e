package model

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-10")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Errorf("weekday %v, want Monday", d.Weekday())
	}
	if d.String() != "2025-03-10" {
		t.Errorf("round trip %q", d.String())
	}

	for _, bad := range []string{"10-03-2025", "2025/03/10", "2025-13-01", ""} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q): expected error", bad)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d, _ := ParseDate("2025-03-30")
	if got := d.AddDays(3).String(); got != "2025-04-02" {
		t.Errorf("AddDays across month: %s", got)
	}
	from, _ := ParseDate("2025-03-10")
	to, _ := ParseDate("2025-03-15")
	if n := from.DaysUntil(to); n != 5 {
		t.Errorf("DaysUntil = %d, want 5", n)
	}
	if !from.Before(to) || to.Before(from) {
		t.Error("ordering broken")
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("14:30")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c != 14*60+30 {
		t.Errorf("minutes %d", c)
	}
	if c.String() != "14:30" {
		t.Errorf("round trip %q", c.String())
	}
	for _, bad := range []string{"25:00", "9:61", "noon", ""} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q): expected error", bad)
		}
	}
}
