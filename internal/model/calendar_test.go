package model

import (
	"testing"
	"time"
)

// TestParseCalendarDay_DateOnly は日付のみの文字列を受理することを検証する。
func TestParseCalendarDay_DateOnly(t *testing.T) {
	day, err := ParseCalendarDay("2025-03-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := day.String(); got != "2025-03-10" {
		t.Errorf("String() = %q, want %q", got, "2025-03-10")
	}
}

// TestParseCalendarDay_ISOInstant はISO 8601のインスタントから時刻とオフセットを
// 無視して同じ日を得ることを検証する。
func TestParseCalendarDay_ISOInstant(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"UTC midnight", "2025-03-10T00:00:00Z", "2025-03-10"},
		{"western offset evening", "2025-03-10T21:00:00-03:00", "2025-03-10"},
		{"eastern offset morning", "2025-03-10T01:30:00+09:00", "2025-03-10"},
		{"with milliseconds", "2025-12-31T23:59:59.999Z", "2025-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, err := ParseCalendarDay(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := day.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParseCalendarDay_Invalid は不正な入力がエラーになることを検証する。
func TestParseCalendarDay_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"not-a-date",
		"2025/03/10",
		"10-03-2025",
		"2025-13-01",
		"2025-02-30",
		"2025-00-10",
	}

	for _, input := range inputs {
		if _, err := ParseCalendarDay(input); err == nil {
			t.Errorf("ParseCalendarDay(%q) should fail", input)
		}
	}
}

// TestAnchorUTC_NoonUTC はアンカーが正午UTCに置かれることを検証する。
func TestAnchorUTC_NoonUTC(t *testing.T) {
	day, err := ParseCalendarDay("2025-06-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anchor := day.AnchorUTC()
	want := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	if !anchor.Equal(want) {
		t.Errorf("AnchorUTC() = %v, want %v", anchor, want)
	}
}

// TestAnchorUTC_WesternTimezoneKeepsDate は正午UTCアンカーがUTC-12まで
// どの西側タイムゾーンで描画しても前日に戻らないことを検証する。
func TestAnchorUTC_WesternTimezoneKeepsDate(t *testing.T) {
	day, err := ParseCalendarDay("2025-06-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anchor := day.AnchorUTC()
	for offsetHours := -12; offsetHours <= 0; offsetHours++ {
		loc := time.FixedZone("test", offsetHours*3600)
		if got := anchor.In(loc).Day(); got != 15 {
			t.Errorf("day in UTC%+d = %d, want 15", offsetHours, got)
		}
	}
}

// TestDayOfUTC_RoundTrip は保存済みアンカーからカレンダー日が復元されることを検証する。
func TestDayOfUTC_RoundTrip(t *testing.T) {
	original, err := ParseCalendarDay("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// タイムゾーン変換を挟んでも復元結果は不変
	stored := original.AnchorUTC().In(time.FixedZone("west", -10*3600))

	restored := DayOfUTC(stored)
	if restored != original {
		t.Errorf("DayOfUTC() = %v, want %v", restored, original)
	}
}

// TestCalendarDay_IsZero はゼロ値判定を検証する。
func TestCalendarDay_IsZero(t *testing.T) {
	var zero CalendarDay
	if !zero.IsZero() {
		t.Error("zero value should report IsZero")
	}

	day, _ := ParseCalendarDay("2025-01-01")
	if day.IsZero() {
		t.Error("parsed day should not report IsZero")
	}
}

// TestEventTitle_Format はタイトルが検査地名と検査数から組み立てられることを検証する。
func TestEventTitle_Format(t *testing.T) {
	if got := EventTitle("Hospital Central", 3); got != "Hospital Central: 3 exame(s)" {
		t.Errorf("EventTitle() = %q", got)
	}
	if got := EventTitle("Clínica São José", 1); got != "Clínica São José: 1 exame(s)" {
		t.Errorf("EventTitle() = %q", got)
	}
}
