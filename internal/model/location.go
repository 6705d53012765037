// Package model はドメインモデルを定義する。
package model

import "time"

// Location は検査地（旧システムの「cidade」）を表す。
// 名称の一意性は正規化名（小文字化・ダイアクリティカルマーク除去）で判定する。
// 全てのリレーションはIDを参照し、名称の変更が権限やイベントを壊すことはない。
type Location struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PermissionGrant は「実施者がこの検査地に予定を登録できる」という1本の許可エッジを表す。
// (PractitionerID, LocationID) の組は一意。名称ではなく不変のIDで結ぶ。
type PermissionGrant struct {
	PractitionerID string
	LocationID     string
	CreatedAt      time.Time
}
