// Package model はドメインモデルを定義する。
package model

import "time"

// AuditEntry は監査ログの1行を表す。
// PractitionerIDは操作主体が特定できない場合（静的トークン経由など）空になる。
type AuditEntry struct {
	ID               string
	PractitionerID   string
	PractitionerName string // 読み取り時にJOINで補完される表示専用フィールド
	Action           string
	Detail           string
	CreatedAt        time.Time
}
