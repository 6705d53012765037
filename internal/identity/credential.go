// Package identity は呼び出し元の身元解決を提供する。
//
// 複数の資格情報メカニズム（静的管理者トークン、セッショントークン、
// レガシー数値ID）を優先順位付きの戦略チェーンとして束ね、
// 最初に成功した戦略のPrincipalを採用する。
package identity

import "golang.org/x/crypto/bcrypt"

// CredentialHasher はパスワードのハッシュ化と検証のインターフェース。
// コアはハッシュの中身を不透明な文字列として扱う。
type CredentialHasher interface {
	// Hash は平文からストレージ用ハッシュを生成する。
	Hash(secret string) (string, error)
	// Verify は平文とストレージ用ハッシュを照合する。
	Verify(secret, storedHash string) bool
}

// BcryptHasher はbcryptによるCredentialHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はデフォルトコストのBcryptHasherを生成する。
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

// Hash は平文からbcryptハッシュを生成する。
func (h *BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	return string(b), err
}

// Verify は平文とbcryptハッシュを照合する。
func (h *BcryptHasher) Verify(secret, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret)) == nil
}

// compile-time interface check
var _ CredentialHasher = (*BcryptHasher)(nil)
