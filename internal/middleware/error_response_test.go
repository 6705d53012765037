package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/examsched/internal/model"
)

// TestStatusForCode はエラーコードとHTTPステータスの対応を検証する。
func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeAuthentication, http.StatusUnauthorized},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeDuplicateName, http.StatusConflict},
		{model.ErrCodeConflict, http.StatusConflict},
		{model.ErrCodeNotFound, http.StatusNotFound},
		{model.ErrCodeInvariantViolation, http.StatusBadRequest},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusForCode(tt.code); got != tt.want {
			t.Errorf("statusForCode(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

// TestWriteServiceError_APIError はAPIエラーが統一フォーマットへ
// 翻訳されることを検証する。
func TestWriteServiceError_APIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, model.NewNotFoundError("location", "loc-1"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeNotFound {
		t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeNotFound)
	}
	if body.Category != "schedule" {
		t.Errorf("Category = %q, want schedule", body.Category)
	}
	if body.Action == "" {
		t.Error("Action is empty")
	}
}

// TestWriteServiceError_WrappedAPIError はラップされたAPIエラーも
// 正しく翻訳されることを検証する。
func TestWriteServiceError_WrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", model.NewForbiddenError("administrator role required"))

	rec := httptest.NewRecorder()
	WriteServiceError(rec, wrapped)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

// TestWriteServiceError_InternalError はAPIエラー以外が詳細を漏らさず
// 一般的な500になることを検証する。
func TestWriteServiceError_InternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, errors.New("pq: connection refused at 10.0.0.5"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q, want INTERNAL_ERROR", body.Code)
	}
	if body.Message != "an internal error occurred" {
		t.Errorf("Message = %q, internal details must not leak", body.Message)
	}
}
