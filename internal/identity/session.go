package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/examsched/internal/model"
)

// ErrBadToken は無効または期限切れのセッショントークンを表す。
var ErrBadToken = errors.New("invalid session token")

// SessionIssuer はセッショントークンの発行と検証のインターフェース。
// コアにとっては外部コラボレータであり、トークンの形式には依存しない。
type SessionIssuer interface {
	// Issue はPrincipalからセッショントークンを発行する。
	Issue(principal model.Principal) (string, error)
	// Verify はトークンを検証してPrincipalを復元する。
	// 無効な場合は(nil, nil)を返し、理由は外へ漏らさない。
	Verify(token string) (*model.Principal, error)
}

// sessionClaims はセッショントークンに埋め込むクレーム。
type sessionClaims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTSessionIssuer はHMAC署名JWTによるSessionIssuerの実装。
type JWTSessionIssuer struct {
	secret []byte
	maxAge time.Duration
}

// NewJWTSessionIssuer はJWTSessionIssuerを生成する。
// maxAgeはトークンの有効期間。
func NewJWTSessionIssuer(secret string, maxAge time.Duration) *JWTSessionIssuer {
	return &JWTSessionIssuer{secret: []byte(secret), maxAge: maxAge}
}

// Issue はPrincipalからHS256署名トークンを発行する。
func (i *JWTSessionIssuer) Issue(principal model.Principal) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Role:  string(principal.Role),
		Email: principal.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.SubjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify はトークンを検証してPrincipalを復元する。無効な場合は(nil, nil)を返す。
func (i *JWTSessionIssuer) Verify(token string) (*model.Principal, error) {
	tok, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		// アルゴリズム混同攻撃の遮断: HMAC以外の署名方式は拒否する
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, nil
	}

	claims, ok := tok.Claims.(*sessionClaims)
	if !ok || !tok.Valid {
		return nil, nil
	}

	role := model.Role(claims.Role)
	if !role.Valid() || claims.Subject == "" {
		return nil, nil
	}

	return &model.Principal{
		SubjectID: claims.Subject,
		Role:      role,
		Email:     claims.Email,
	}, nil
}

// compile-time interface check
var _ SessionIssuer = (*JWTSessionIssuer)(nil)
