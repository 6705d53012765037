package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はメールとパスワードを検証し、プリンシパルとセッショントークンを返す。
	Login(ctx context.Context, email, password string) (*model.Principal, string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はセッション認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// principalResponse は認証済みプリンシパルのAPIレスポンス。
type principalResponse struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

// loginResponse はログイン成功のAPIレスポンス。
// Cookieを使わないクライアント向けにトークンも本文で返す。
type loginResponse struct {
	Token     string            `json:"token"`
	Principal principalResponse `json:"principal"`
}

// Login はメールとパスワードによるログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("credentials", "email and password are required"))
		return
	}

	principal, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッショントークンをHTTP Only Cookieに設定
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		Principal: toPrincipalResponse(*principal),
	})
}

// Logout はセッションCookieをクリアする。
// POST /auth/logout
// トークンは自己完結型のため、サーバー側の失効リストは持たない。
// Cookieの破棄と有効期限による失効で運用する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在の認証済みプリンシパルを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	writeJSON(w, http.StatusOK, toPrincipalResponse(principal))
}

// toPrincipalResponse はプリンシパルをAPIレスポンス型に変換する。
func toPrincipalResponse(p model.Principal) principalResponse {
	return principalResponse{
		ID:    p.SubjectID,
		Role:  string(p.Role),
		Email: p.Email,
	}
}
