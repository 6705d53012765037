package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/examsched/internal/model"
)

// mockPermissionService はPermissionServiceInterfaceのモック。
type mockPermissionService struct {
	listGrantsFn    func(ctx context.Context, principal model.Principal, practitionerID string) ([]string, error)
	replaceGrantsFn func(ctx context.Context, principal model.Principal, practitionerID string, locationIDs []string) error
	toggleGrantFn   func(ctx context.Context, principal model.Principal, practitionerID, locationID string) (bool, error)
}

func (m *mockPermissionService) ListGrants(ctx context.Context, principal model.Principal, practitionerID string) ([]string, error) {
	if m.listGrantsFn != nil {
		return m.listGrantsFn(ctx, principal, practitionerID)
	}
	return []string{}, nil
}

func (m *mockPermissionService) ReplaceGrants(ctx context.Context, principal model.Principal, practitionerID string, locationIDs []string) error {
	if m.replaceGrantsFn != nil {
		return m.replaceGrantsFn(ctx, principal, practitionerID, locationIDs)
	}
	return nil
}

func (m *mockPermissionService) ToggleGrant(ctx context.Context, principal model.Principal, practitionerID, locationID string) (bool, error) {
	if m.toggleGrantFn != nil {
		return m.toggleGrantFn(ctx, principal, practitionerID, locationID)
	}
	return false, nil
}

// TestListGrants_Handler は許可一覧の形と空集合の表現を検証する。
func TestListGrants_Handler(t *testing.T) {
	service := &mockPermissionService{
		listGrantsFn: func(_ context.Context, _ model.Principal, practitionerID string) ([]string, error) {
			if practitionerID != "prac-1" {
				t.Errorf("practitionerID = %q, want prac-1", practitionerID)
			}
			return []string{}, nil
		},
	}
	h := NewPermissionHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/permissions/prac-1", nil)
	req = withURLParam(withPrincipal(req, testAdmin), "practitionerID", "prac-1")
	rec := httptest.NewRecorder()
	h.ListGrants(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// 許可ゼロは null ではなく [] で返す
	if !strings.Contains(rec.Body.String(), `"location_ids":[]`) {
		t.Errorf("body = %s, want empty array for location_ids", rec.Body.String())
	}
}

// TestReplaceGrants_Handler は全置換後に現在の許可一覧が返ることを検証する。
func TestReplaceGrants_Handler(t *testing.T) {
	service := &mockPermissionService{
		replaceGrantsFn: func(_ context.Context, _ model.Principal, practitionerID string, locationIDs []string) error {
			if practitionerID != "prac-1" {
				t.Errorf("practitionerID = %q, want prac-1", practitionerID)
			}
			if len(locationIDs) != 2 {
				t.Errorf("locationIDs = %v, want 2 entries", locationIDs)
			}
			return nil
		},
		listGrantsFn: func(_ context.Context, _ model.Principal, _ string) ([]string, error) {
			return []string{"loc-1", "loc-2"}, nil
		},
	}
	h := NewPermissionHandler(service)

	body := `{"location_ids":["loc-1","loc-2"]}`
	req := httptest.NewRequest(http.MethodPut, "/api/permissions/prac-1", strings.NewReader(body))
	req = withURLParam(withPrincipal(req, testAdmin), "practitionerID", "prac-1")
	rec := httptest.NewRecorder()
	h.ReplaceGrants(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp grantsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp.LocationIDs) != 2 {
		t.Errorf("LocationIDs = %v, want 2 entries", resp.LocationIDs)
	}
}

// TestToggleGrant_Handler はトグル結果の返却と空location_idの400を検証する。
func TestToggleGrant_Handler(t *testing.T) {
	service := &mockPermissionService{
		toggleGrantFn: func(_ context.Context, _ model.Principal, practitionerID, locationID string) (bool, error) {
			if practitionerID != "prac-1" || locationID != "loc-1" {
				t.Errorf("ToggleGrant(%q, %q), want (prac-1, loc-1)", practitionerID, locationID)
			}
			return true, nil
		},
	}
	h := NewPermissionHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/permissions/prac-1/toggle", strings.NewReader(`{"location_id":"loc-1"}`))
	req = withURLParam(withPrincipal(req, testAdmin), "practitionerID", "prac-1")
	rec := httptest.NewRecorder()
	h.ToggleGrant(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp toggleGrantResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !resp.Granted {
		t.Error("granted = false, want true")
	}

	// location_id欠落
	req = httptest.NewRequest(http.MethodPost, "/api/permissions/prac-1/toggle", strings.NewReader(`{}`))
	req = withURLParam(withPrincipal(req, testAdmin), "practitionerID", "prac-1")
	rec = httptest.NewRecorder()
	h.ToggleGrant(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestPermissionHandler_Forbidden は実施者による他者の許可操作が
// 403になることを検証する。
func TestPermissionHandler_Forbidden(t *testing.T) {
	service := &mockPermissionService{
		listGrantsFn: func(_ context.Context, _ model.Principal, _ string) ([]string, error) {
			return nil, model.NewForbiddenError("cannot read another practitioner's permissions")
		},
	}
	h := NewPermissionHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/permissions/prac-2", nil)
	req = withURLParam(withPrincipal(req, testPrac), "practitionerID", "prac-2")
	rec := httptest.NewRecorder()
	h.ListGrants(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
