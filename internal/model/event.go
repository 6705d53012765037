// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Event は特定のカレンダー日に特定の検査地で実施する検査数を表す。
// 更新操作は存在しない。修正は削除して再作成する。
type Event struct {
	ID             string
	PractitionerID string
	LocationID     string
	Day            CalendarDay
	ExamCount      int
	CreatedAt      time.Time
}

// EventProjection はプレゼンテーション層へ返すイベントの射影。
// Titleは読み取りのたびに現在の検査地名から再計算され、永続化されない。
// 検査地の改名が過去のタイトルを壊さないための設計。
type EventProjection struct {
	ID             string
	Title          string
	Day            CalendarDay
	LocationID     string
	LocationName   string
	PractitionerID string
	ExamCount      int
}

// EventTitle は表示用タイトルを現在の検査地名と検査数から組み立てる。
func EventTitle(locationName string, examCount int) string {
	return fmt.Sprintf("%s: %d exame(s)", locationName, examCount)
}
