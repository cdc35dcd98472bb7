package util

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	s := "2024-10-10"
	got, ok := ParseDate(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != s {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, ok := ParseDate("10/10/2024"); ok {
		t.Fatalf("expected parse failure")
	}
	if _, ok := ParseDate(""); ok {
		t.Fatalf("expected parse failure on empty")
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	got := ParseDateDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestRangeDays(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	if d := RangeDays(from, to); d != 30 {
		t.Fatalf("expected 30 days, got %d", d)
	}
}

func TestPeriodRange(t *testing.T) {
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	start, _ := PeriodRange("30d", end)
	if RangeDays(start, end) != 30 {
		t.Fatalf("unexpected 30d start %v", start)
	}
	start, _ = PeriodRange("180d", end)
	if RangeDays(start, end) != 180 {
		t.Fatalf("unexpected 180d start %v", start)
	}
	start, _ = PeriodRange("bogus", end)
	if RangeDays(start, end) != 180 {
		t.Fatalf("expected 180d fallback, got %v", start)
	}
}
