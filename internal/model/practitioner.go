// Package model はドメインモデルを定義する。
package model

import "time"

// Role は利用者の役割を表す。
type Role string

const (
	// RoleAdmin は管理者。全リソースに無制限にアクセスできる。
	RoleAdmin Role = "admin"
	// RolePractitioner は検査実施者。自身のイベントと許可された検査地のみ扱える。
	RolePractitioner Role = "practitioner"
)

// Valid はロール値が定義済みであることを検証する。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePractitioner
}

// Practitioner は検査実施者（旧システムの「médico」）を表す。
// IDはサロゲートキーであり、表示名やメールの変更で不変。
// LegacyIDは移行前システムの数値IDで、レガシーヘッダ認証でのみ参照される。
type Practitioner struct {
	ID             string
	DisplayName    string
	Email          string
	CredentialHash string
	Role           Role
	LicenseID      string // 任意。医師登録番号（旧CRM）
	LegacyID       int64  // 0は未割当
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Principal はIdentity Resolverが解決した呼び出し元の身元を表す。
// SubjectIDは通常Practitioner.ID。静的管理者トークン経由では"system"となる。
type Principal struct {
	SubjectID string
	Role      Role
	Email     string
}

// IsAdmin は管理者権限を持つかを返す。
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
