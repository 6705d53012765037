// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"regexp"
	"time"
)

// dateOnlyPattern はYYYY-MM-DD形式（またはISO 8601のその先頭部分）を切り出す。
var dateOnlyPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)

// CalendarDay は時刻もタイムゾーンも持たない純粋なカレンダー上の1日を表す。
// 論理モデルとしては日付のみで、永続化の都合（§ AnchorUTC）はここに漏らさない。
type CalendarDay struct {
	year  int
	month time.Month
	day   int
}

// ParseCalendarDay は日付のみの文字列またはISO 8601のインスタントから
// CalendarDayを生成する。"2025-03-10" も "2025-03-10T09:30:00-03:00" も
// 同じ日として扱う。実在しない日付はエラーを返す。
func ParseCalendarDay(input string) (CalendarDay, error) {
	m := dateOnlyPattern.FindStringSubmatch(input)
	if m == nil {
		return CalendarDay{}, fmt.Errorf("not a calendar date: %q", input)
	}

	t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return CalendarDay{}, fmt.Errorf("not a valid calendar date: %q", input)
	}

	y, mo, d := t.Date()
	return CalendarDay{year: y, month: mo, day: d}, nil
}

// DayOfUTC は保存済みのアンカー時刻からカレンダー日を復元する。
// アンカーは正午UTCに置かれるため、UTCの日付がそのまま論理上の日になる。
func DayOfUTC(t time.Time) CalendarDay {
	y, mo, d := t.UTC().Date()
	return CalendarDay{year: y, month: mo, day: d}
}

// String はYYYY-MM-DD形式を返す。
func (d CalendarDay) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, d.month, d.day)
}

// AnchorUTC は永続化用のアンカー時刻（正午UTC）を返す。
// ストレージに日付専用型がない前提の回避策で、UTCより西のどの
// タイムゾーンで描画しても日付が前日に戻らないことを保証する。
func (d CalendarDay) AnchorUTC() time.Time {
	return time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC)
}

// Year は年を返す。
func (d CalendarDay) Year() int { return d.year }

// Month は月を返す。
func (d CalendarDay) Month() time.Month { return d.month }

// IsZero は未初期化値かを返す。
func (d CalendarDay) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}
