package identity

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strconv"

	"github.com/hitoshi/examsched/internal/model"
)

// Credentials はリクエストから抽出した生の資格情報。
// どのフィールドが埋まっているかは伝送路次第で、解決は戦略チェーンに委ねる。
type Credentials struct {
	AdminToken    string // X-Admin-Token / Authorization: Bearer / ?token=
	SessionToken  string // セッションCookieまたはBearerトークン
	LegacySubject string // X-User-Id ヘッダの数値文字列
}

// Strategy は1つの認証メカニズムを表す。
// 該当する資格情報がない、または照合に失敗した場合は(nil, nil)を返す。
// エラーは内部障害（ストレージ到達不能など）のみに使う。
type Strategy interface {
	TryAuthenticate(ctx context.Context, creds Credentials) (*model.Principal, error)
}

// PractitionerLookup はレガシーID戦略が必要とする検索インターフェース。
// repository.PractitionerRepositoryの部分集合として定義する。
type PractitionerLookup interface {
	FindByLegacyID(ctx context.Context, legacyID int64) (*model.Practitioner, error)
}

// Resolver は戦略を優先順位順に試し、最初に成功したPrincipalを返す。
type Resolver struct {
	strategies []Strategy
}

// NewResolver は標準の優先順位（静的管理者トークン → セッショントークン →
// レガシー数値ID）でResolverを構成する。adminTokenが空の場合、
// 静的トークン戦略は構成されない。
func NewResolver(adminToken string, issuer SessionIssuer, lookup PractitionerLookup) *Resolver {
	var strategies []Strategy
	if adminToken != "" {
		strategies = append(strategies, &AdminTokenStrategy{expected: []byte(adminToken)})
	}
	strategies = append(strategies,
		&SessionTokenStrategy{issuer: issuer},
		&LegacySubjectStrategy{lookup: lookup},
	)
	return &Resolver{strategies: strategies}
}

// Authenticate は戦略チェーンを順に試す。
// 全戦略が外れた場合は一様なAuthenticationErrorを返し、
// どの戦略まで進んだかは応答から判別できない（プロービング防止）。
func (r *Resolver) Authenticate(ctx context.Context, creds Credentials) (*model.Principal, error) {
	for _, s := range r.strategies {
		principal, err := s.TryAuthenticate(ctx, creds)
		if err != nil {
			// 内部障害もクライアントには認証失敗として返す。詳細はログのみ。
			slog.Error("authentication strategy failed",
				slog.String("error", err.Error()),
			)
			return nil, model.NewAuthenticationError()
		}
		if principal != nil {
			return principal, nil
		}
	}
	return nil, model.NewAuthenticationError()
}

// AdminTokenStrategy は構成済みの静的管理者トークンとの定数時間比較。
// 一致した場合のPrincipalは実在の実施者に紐付かないsystem主体となる。
type AdminTokenStrategy struct {
	expected []byte
}

// TryAuthenticate は定数時間比較でトークンを照合する。
func (s *AdminTokenStrategy) TryAuthenticate(_ context.Context, creds Credentials) (*model.Principal, error) {
	if creds.AdminToken == "" {
		return nil, nil
	}
	if subtle.ConstantTimeCompare([]byte(creds.AdminToken), s.expected) != 1 {
		return nil, nil
	}
	return &model.Principal{SubjectID: "system", Role: model.RoleAdmin}, nil
}

// SessionTokenStrategy はセッション発行者によるトークン検証。
type SessionTokenStrategy struct {
	issuer SessionIssuer
}

// TryAuthenticate はセッショントークンからPrincipalを復元する。
func (s *SessionTokenStrategy) TryAuthenticate(_ context.Context, creds Credentials) (*model.Principal, error) {
	if creds.SessionToken == "" {
		return nil, nil
	}
	return s.issuer.Verify(creds.SessionToken)
}

// LegacySubjectStrategy は移行前システムの数値IDヘッダによる後方互換認証。
// 実施者の現在のロールはトークンではなくストレージから引く。
type LegacySubjectStrategy struct {
	lookup PractitionerLookup
}

// TryAuthenticate は数値IDで実施者を検索してPrincipalを構成する。
func (s *LegacySubjectStrategy) TryAuthenticate(ctx context.Context, creds Credentials) (*model.Principal, error) {
	if creds.LegacySubject == "" {
		return nil, nil
	}
	legacyID, err := strconv.ParseInt(creds.LegacySubject, 10, 64)
	if err != nil || legacyID <= 0 {
		return nil, nil
	}

	p, err := s.lookup.FindByLegacyID(ctx, legacyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return &model.Principal{SubjectID: p.ID, Role: p.Role, Email: p.Email}, nil
}

// compile-time interface checks
var (
	_ Strategy = (*AdminTokenStrategy)(nil)
	_ Strategy = (*SessionTokenStrategy)(nil)
	_ Strategy = (*LegacySubjectStrategy)(nil)
)
