// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/examsched/internal/identity"
	"github.com/hitoshi/examsched/internal/metrics"
	"github.com/hitoshi/examsched/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストにプリンシパルを格納するためのキー。
var principalContextKey = contextKey("principal")

// PrincipalResolver は資格情報からプリンシパルを解決するインターフェース。
// identity.Resolverの部分集合として定義する。
type PrincipalResolver interface {
	Authenticate(ctx context.Context, creds identity.Credentials) (*model.Principal, error)
}

// NewPrincipalMiddleware はリクエストから資格情報を抽出し、ストラテジー
// チェーンでプリンシパルへ解決するミドルウェアを返す。解決できない
// リクエストには、どの資格情報が欠けていたかを区別しない一様な401を返す。
func NewPrincipalMiddleware(resolver PrincipalResolver, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := extractCredentials(r)

			principal, err := resolver.Authenticate(r.Context(), creds)
			if err != nil || principal == nil {
				collector.RecordAuthFailure("resolver")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationError())
				return
			}

			ctx := ContextWithPrincipal(r.Context(), *principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractCredentials は3系統の資格情報をリクエストから取り出す。
// 管理トークンはX-Admin-Tokenヘッダー、Bearerトークン、tokenクエリの順で探す。
// Bearerトークンはセッショントークンとしても解釈され、どちらの
// ストラテジーが受理するかはリゾルバー側で決まる。
func extractCredentials(r *http.Request) identity.Credentials {
	bearer := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		bearer = strings.TrimPrefix(h, "Bearer ")
	}

	adminToken := r.Header.Get("X-Admin-Token")
	if adminToken == "" {
		adminToken = bearer
	}
	if adminToken == "" {
		adminToken = r.URL.Query().Get("token")
	}

	sessionToken := ""
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		sessionToken = cookie.Value
	}
	if sessionToken == "" {
		sessionToken = bearer
	}

	return identity.Credentials{
		AdminToken:    adminToken,
		SessionToken:  sessionToken,
		LegacySubject: r.Header.Get("X-User-Id"),
	}
}

// PrincipalFromContext はリクエストコンテキストからプリンシパルを取得する。
// プリンシパルミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (model.Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok || principal.SubjectID == "" {
		return model.Principal{}, fmt.Errorf("principal not found in context")
	}
	return principal, nil
}

// ContextWithPrincipal はコンテキストにプリンシパルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
