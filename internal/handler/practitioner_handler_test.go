package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/registry"
)

// mockPractitionerService はPractitionerServiceInterfaceのモック。
type mockPractitionerService struct {
	listFn          func(ctx context.Context, principal model.Principal) ([]*model.Practitioner, error)
	createFn        func(ctx context.Context, principal model.Principal, in registry.CreatePractitionerInput) (*model.Practitioner, error)
	deleteFn        func(ctx context.Context, principal model.Principal, id string) error
	resetPasswordFn func(ctx context.Context, principal model.Principal, id, newPassword string) error
}

func (m *mockPractitionerService) ListPractitioners(ctx context.Context, principal model.Principal) ([]*model.Practitioner, error) {
	if m.listFn != nil {
		return m.listFn(ctx, principal)
	}
	return nil, nil
}

func (m *mockPractitionerService) CreatePractitioner(ctx context.Context, principal model.Principal, in registry.CreatePractitionerInput) (*model.Practitioner, error) {
	if m.createFn != nil {
		return m.createFn(ctx, principal, in)
	}
	return nil, nil
}

func (m *mockPractitionerService) DeletePractitioner(ctx context.Context, principal model.Principal, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, principal, id)
	}
	return nil
}

func (m *mockPractitionerService) ResetPassword(ctx context.Context, principal model.Principal, id, newPassword string) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, principal, id, newPassword)
	}
	return nil
}

// TestListPractitioners_Handler は一覧レスポンスに資格情報ハッシュが
// 含まれないことを検証する。
func TestListPractitioners_Handler(t *testing.T) {
	service := &mockPractitionerService{
		listFn: func(_ context.Context, _ model.Principal) ([]*model.Practitioner, error) {
			return []*model.Practitioner{{
				ID:             "prac-1",
				DisplayName:    "Maria Souza",
				Email:          "maria@example.com",
				CredentialHash: "$2a$10$secret",
				Role:           model.RolePractitioner,
			}}, nil
		},
	}
	h := NewPractitionerHandler(service)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/practitioners", nil), testAdmin)
	rec := httptest.NewRecorder()
	h.ListPractitioners(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("credential hash leaked into the response body")
	}

	var resp []practitionerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp) != 1 || resp[0].DisplayName != "Maria Souza" {
		t.Errorf("resp = %+v", resp)
	}
}

// TestCreatePractitioner_Handler は作成の201とロール文字列の受け渡しを検証する。
func TestCreatePractitioner_Handler(t *testing.T) {
	service := &mockPractitionerService{
		createFn: func(_ context.Context, _ model.Principal, in registry.CreatePractitionerInput) (*model.Practitioner, error) {
			if in.Role != model.RoleAdmin {
				t.Errorf("Role = %q, want admin", in.Role)
			}
			if in.LegacyID != 7 {
				t.Errorf("LegacyID = %d, want 7", in.LegacyID)
			}
			return &model.Practitioner{ID: "prac-2", DisplayName: in.DisplayName, Email: in.Email, Role: in.Role}, nil
		},
	}
	h := NewPractitionerHandler(service)

	body := `{"display_name":"Dr. João","email":"joao@example.com","password":"pw","role":"admin","legacy_id":7}`
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/practitioners", strings.NewReader(body)), testAdmin)
	rec := httptest.NewRecorder()
	h.CreatePractitioner(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
}

// TestDeletePractitioner_Handler は削除の204と最後の管理者拒否の400を検証する。
func TestDeletePractitioner_Handler(t *testing.T) {
	service := &mockPractitionerService{}
	h := NewPractitionerHandler(service)

	req := httptest.NewRequest(http.MethodDelete, "/api/practitioners/prac-1", nil)
	req = withURLParam(withPrincipal(req, testAdmin), "id", "prac-1")
	rec := httptest.NewRecorder()
	h.DeletePractitioner(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	service.deleteFn = func(_ context.Context, _ model.Principal, _ string) error {
		return model.NewInvariantViolationError("cannot delete the last administrator")
	}
	req = httptest.NewRequest(http.MethodDelete, "/api/practitioners/admin-1", nil)
	req = withURLParam(withPrincipal(req, testAdmin), "id", "admin-1")
	rec = httptest.NewRecorder()
	h.DeletePractitioner(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for last-admin violation", rec.Code)
	}
}

// TestResetPassword_Handler はリセットの204とパラメータ受け渡しを検証する。
func TestResetPassword_Handler(t *testing.T) {
	service := &mockPractitionerService{
		resetPasswordFn: func(_ context.Context, _ model.Principal, id, newPassword string) error {
			if id != "prac-1" || newPassword != "new-pw" {
				t.Errorf("ResetPassword(%q, %q), want (prac-1, new-pw)", id, newPassword)
			}
			return nil
		},
	}
	h := NewPractitionerHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/practitioners/prac-1/reset-password", strings.NewReader(`{"password":"new-pw"}`))
	req = withURLParam(withPrincipal(req, testAdmin), "id", "prac-1")
	rec := httptest.NewRecorder()
	h.ResetPassword(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
