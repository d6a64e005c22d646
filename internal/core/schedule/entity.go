package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout は日付の入出力形式です。
const DateLayout = "2006-01-02"

// Day は 1 日分の勤務可否です。Date は UTC の 0 時に正規化されます。
type Day struct {
	Date      time.Time
	IsWorkDay bool
}

// Range は両端を含む日付範囲です。nil の端は制限なしを表します。
type Range struct {
	Start *time.Time
	End   *time.Time
}

// MasterSchedule は作業員 1 名分のスケジュールです。
type MasterSchedule struct {
	MasterID string
	Name     string
	Cities   []string
	Days     []Day
}

// ReplaceResult は置き換え結果です。
type ReplaceResult struct {
	UpdatedCount int
}

// ParseDate は YYYY-MM-DD 形式の文字列を UTC の日付に変換します。
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", raw, ErrInvalidDate)
	}
	return t.UTC(), nil
}

// ParseRange は任意の開始日と終了日から Range を組み立てます。
func ParseRange(start, end string) (Range, error) {
	var r Range
	if strings.TrimSpace(start) != "" {
		t, err := ParseDate(start)
		if err != nil {
			return Range{}, err
		}
		r.Start = &t
	}
	if strings.TrimSpace(end) != "" {
		t, err := ParseDate(end)
		if err != nil {
			return Range{}, err
		}
		r.End = &t
	}
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

// Bounded は開始日と終了日の両方が指定されているかどうかを返します。
func (r Range) Bounded() bool {
	return r.Start != nil && r.End != nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
