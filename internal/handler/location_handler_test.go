package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
)

var (
	testAdmin = model.Principal{SubjectID: "admin-1", Role: model.RoleAdmin}
	testPrac  = model.Principal{SubjectID: "prac-1", Role: model.RolePractitioner}
)

// mockLocationService はLocationServiceInterfaceのモック。
type mockLocationService struct {
	listFn      func(ctx context.Context, principal model.Principal) ([]*model.Location, error)
	createFn    func(ctx context.Context, principal model.Principal, name string) (*model.Location, error)
	renameFn    func(ctx context.Context, principal model.Principal, id, newName string) (*model.Location, error)
	setActiveFn func(ctx context.Context, principal model.Principal, id string, active bool) error
	deleteFn    func(ctx context.Context, principal model.Principal, id string) error
}

func (m *mockLocationService) ListLocations(ctx context.Context, principal model.Principal) ([]*model.Location, error) {
	if m.listFn != nil {
		return m.listFn(ctx, principal)
	}
	return nil, nil
}

func (m *mockLocationService) CreateLocation(ctx context.Context, principal model.Principal, name string) (*model.Location, error) {
	if m.createFn != nil {
		return m.createFn(ctx, principal, name)
	}
	return nil, nil
}

func (m *mockLocationService) RenameLocation(ctx context.Context, principal model.Principal, id, newName string) (*model.Location, error) {
	if m.renameFn != nil {
		return m.renameFn(ctx, principal, id, newName)
	}
	return nil, nil
}

func (m *mockLocationService) SetLocationActive(ctx context.Context, principal model.Principal, id string, active bool) error {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, principal, id, active)
	}
	return nil
}

func (m *mockLocationService) DeleteLocation(ctx context.Context, principal model.Principal, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, principal, id)
	}
	return nil
}

// withPrincipal はプリンシパルをコンテキストに積んだリクエストを返す。
func withPrincipal(r *http.Request, principal model.Principal) *http.Request {
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), principal))
}

// withURLParam はchiのルートパラメータをコンテキストに積んだリクエストを返す。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// TestListLocations_Handler は一覧レスポンスの形を検証する。
func TestListLocations_Handler(t *testing.T) {
	service := &mockLocationService{
		listFn: func(_ context.Context, principal model.Principal) ([]*model.Location, error) {
			if principal.SubjectID != "prac-1" {
				t.Errorf("principal = %q, want prac-1", principal.SubjectID)
			}
			return []*model.Location{{ID: "loc-1", Name: "Hospital Central", Active: true}}, nil
		},
	}
	h := NewLocationHandler(service)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/locations", nil), testPrac)
	rec := httptest.NewRecorder()
	h.ListLocations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp []locationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "loc-1" || !resp[0].Active {
		t.Errorf("resp = %+v", resp)
	}
}

// TestCreateLocation_Handler は作成の201と重複時の409を検証する。
func TestCreateLocation_Handler(t *testing.T) {
	service := &mockLocationService{
		createFn: func(_ context.Context, _ model.Principal, name string) (*model.Location, error) {
			if name != "Hospital Central" {
				t.Errorf("name = %q, want Hospital Central", name)
			}
			return &model.Location{ID: "loc-1", Name: name, Active: true}, nil
		},
	}
	h := NewLocationHandler(service)

	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/locations", strings.NewReader(`{"name":"Hospital Central"}`)), testAdmin)
	rec := httptest.NewRecorder()
	h.CreateLocation(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	// 重複
	service.createFn = func(_ context.Context, _ model.Principal, name string) (*model.Location, error) {
		return nil, model.NewDuplicateNameError(name)
	}
	req = withPrincipal(httptest.NewRequest(http.MethodPost, "/api/locations", strings.NewReader(`{"name":"hospital central"}`)), testAdmin)
	rec = httptest.NewRecorder()
	h.CreateLocation(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// TestRenameLocation_Handler はURLパラメータとボディの受け渡しを検証する。
func TestRenameLocation_Handler(t *testing.T) {
	service := &mockLocationService{
		renameFn: func(_ context.Context, _ model.Principal, id, newName string) (*model.Location, error) {
			if id != "loc-1" || newName != "Novo Nome" {
				t.Errorf("Rename(%q, %q), want (loc-1, Novo Nome)", id, newName)
			}
			return &model.Location{ID: id, Name: newName, Active: true}, nil
		},
	}
	h := NewLocationHandler(service)

	req := httptest.NewRequest(http.MethodPatch, "/api/locations/loc-1", strings.NewReader(`{"name":"Novo Nome"}`))
	req = withURLParam(withPrincipal(req, testAdmin), "id", "loc-1")
	rec := httptest.NewRecorder()
	h.RenameLocation(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// TestSetActive_Handler はアクティブフラグ更新の204を検証する。
func TestSetActive_Handler(t *testing.T) {
	var gotActive bool
	service := &mockLocationService{
		setActiveFn: func(_ context.Context, _ model.Principal, id string, active bool) error {
			gotActive = active
			return nil
		},
	}
	h := NewLocationHandler(service)

	req := httptest.NewRequest(http.MethodPut, "/api/locations/loc-1/active", strings.NewReader(`{"active":false}`))
	req = withURLParam(withPrincipal(req, testAdmin), "id", "loc-1")
	rec := httptest.NewRecorder()
	h.SetActive(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if gotActive {
		t.Error("active = true, want false")
	}
}

// TestDeleteLocation_Handler は削除の204と依存衝突時の409を検証する。
func TestDeleteLocation_Handler(t *testing.T) {
	service := &mockLocationService{}
	h := NewLocationHandler(service)

	req := httptest.NewRequest(http.MethodDelete, "/api/locations/loc-1", nil)
	req = withURLParam(withPrincipal(req, testAdmin), "id", "loc-1")
	rec := httptest.NewRecorder()
	h.DeleteLocation(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	service.deleteFn = func(_ context.Context, _ model.Principal, _ string) error {
		return model.NewConflictError("location has scheduled events")
	}
	req = httptest.NewRequest(http.MethodDelete, "/api/locations/loc-1", nil)
	req = withURLParam(withPrincipal(req, testAdmin), "id", "loc-1")
	rec = httptest.NewRecorder()
	h.DeleteLocation(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// TestLocationHandler_Unauthorized はプリンシパル欠落時の401を検証する。
func TestLocationHandler_Unauthorized(t *testing.T) {
	h := NewLocationHandler(&mockLocationService{})

	rec := httptest.NewRecorder()
	h.ListLocations(rec, httptest.NewRequest(http.MethodGet, "/api/locations", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
