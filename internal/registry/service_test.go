package registry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/examsched/internal/audit"
	"github.com/hitoshi/examsched/internal/authz"
	"github.com/hitoshi/examsched/internal/config"
	"github.com/hitoshi/examsched/internal/identity"
	"github.com/hitoshi/examsched/internal/metrics"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/security"
)

var (
	adminPrincipal = model.Principal{SubjectID: "admin-1", Role: model.RoleAdmin}
	pracPrincipal  = model.Principal{SubjectID: "prac-1", Role: model.RolePractitioner}
)

// mockLocationRepo はrepository.LocationRepositoryのモック。
type mockLocationRepo struct {
	createFn        func(ctx context.Context, loc *model.Location, nameNormalized string) error
	findByIDFn      func(ctx context.Context, id string) (*model.Location, error)
	listFn          func(ctx context.Context) ([]*model.Location, error)
	listPermittedFn func(ctx context.Context, practitionerID string) ([]*model.Location, error)
	renameFn        func(ctx context.Context, id, name, nameNormalized string) error
	setActiveFn     func(ctx context.Context, id string, active bool) error
}

func (m *mockLocationRepo) Create(ctx context.Context, loc *model.Location, nameNormalized string) error {
	if m.createFn != nil {
		return m.createFn(ctx, loc, nameNormalized)
	}
	return nil
}

func (m *mockLocationRepo) FindByID(ctx context.Context, id string) (*model.Location, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLocationRepo) List(ctx context.Context) ([]*model.Location, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockLocationRepo) ListPermitted(ctx context.Context, practitionerID string) ([]*model.Location, error) {
	if m.listPermittedFn != nil {
		return m.listPermittedFn(ctx, practitionerID)
	}
	return nil, nil
}

func (m *mockLocationRepo) Rename(ctx context.Context, id, name, nameNormalized string) error {
	if m.renameFn != nil {
		return m.renameFn(ctx, id, name, nameNormalized)
	}
	return nil
}

func (m *mockLocationRepo) SetActive(ctx context.Context, id string, active bool) error {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, id, active)
	}
	return nil
}

// mockPractitionerRepo はrepository.PractitionerRepositoryのモック。
type mockPractitionerRepo struct {
	createFn               func(ctx context.Context, p *model.Practitioner) error
	findByIDFn             func(ctx context.Context, id string) (*model.Practitioner, error)
	findByEmailFn          func(ctx context.Context, emailNormalized string) (*model.Practitioner, error)
	findByLegacyIDFn       func(ctx context.Context, legacyID int64) (*model.Practitioner, error)
	listFn                 func(ctx context.Context) ([]*model.Practitioner, error)
	updateCredentialHashFn func(ctx context.Context, id, credentialHash string) error
}

func (m *mockPractitionerRepo) Create(ctx context.Context, p *model.Practitioner) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}

func (m *mockPractitionerRepo) FindByID(ctx context.Context, id string) (*model.Practitioner, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPractitionerRepo) FindByEmail(ctx context.Context, emailNormalized string) (*model.Practitioner, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, emailNormalized)
	}
	return nil, nil
}

func (m *mockPractitionerRepo) FindByLegacyID(ctx context.Context, legacyID int64) (*model.Practitioner, error) {
	if m.findByLegacyIDFn != nil {
		return m.findByLegacyIDFn(ctx, legacyID)
	}
	return nil, nil
}

func (m *mockPractitionerRepo) List(ctx context.Context) ([]*model.Practitioner, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPractitionerRepo) UpdateCredentialHash(ctx context.Context, id, credentialHash string) error {
	if m.updateCredentialHashFn != nil {
		return m.updateCredentialHashFn(ctx, id, credentialHash)
	}
	return nil
}

// mockCascadeRepo はrepository.CascadeRepositoryのモック。
type mockCascadeRepo struct {
	deleteLocationFn     func(ctx context.Context, locationID string, restrict bool) error
	deletePractitionerFn func(ctx context.Context, practitionerID string, restrict bool) error
}

func (m *mockCascadeRepo) DeleteLocation(ctx context.Context, locationID string, restrict bool) error {
	if m.deleteLocationFn != nil {
		return m.deleteLocationFn(ctx, locationID, restrict)
	}
	return nil
}

func (m *mockCascadeRepo) DeletePractitioner(ctx context.Context, practitionerID string, restrict bool) error {
	if m.deletePractitionerFn != nil {
		return m.deletePractitionerFn(ctx, practitionerID, restrict)
	}
	return nil
}

// mockPermissionRepo は認可ポリシーが参照する許可マトリクスのモック。
type mockPermissionRepo struct {
	replaceGrantsFn func(ctx context.Context, practitionerID string, locationIDs []string) error
	toggleGrantFn   func(ctx context.Context, practitionerID, locationID string) (bool, error)
	listGrantsFn    func(ctx context.Context, practitionerID string) ([]string, error)
	hasGrantFn      func(ctx context.Context, practitionerID, locationID string) (bool, error)
}

func (m *mockPermissionRepo) ReplaceGrants(ctx context.Context, practitionerID string, locationIDs []string) error {
	if m.replaceGrantsFn != nil {
		return m.replaceGrantsFn(ctx, practitionerID, locationIDs)
	}
	return nil
}

func (m *mockPermissionRepo) ToggleGrant(ctx context.Context, practitionerID, locationID string) (bool, error) {
	if m.toggleGrantFn != nil {
		return m.toggleGrantFn(ctx, practitionerID, locationID)
	}
	return false, nil
}

func (m *mockPermissionRepo) ListGrants(ctx context.Context, practitionerID string) ([]string, error) {
	if m.listGrantsFn != nil {
		return m.listGrantsFn(ctx, practitionerID)
	}
	return nil, nil
}

func (m *mockPermissionRepo) HasGrant(ctx context.Context, practitionerID, locationID string) (bool, error) {
	if m.hasGrantFn != nil {
		return m.hasGrantFn(ctx, practitionerID, locationID)
	}
	return false, nil
}

// testDeps はサービス組み立て用のモック一式。
type testDeps struct {
	locations     *mockLocationRepo
	practitioners *mockPractitionerRepo
	cascade       *mockCascadeRepo
	grants        *mockPermissionRepo
	deletePolicy  config.DeletePolicy
}

// newTestService はモックを束ねたServiceを生成する。
func newTestService(t *testing.T, deps testDeps) *Service {
	t.Helper()

	if deps.locations == nil {
		deps.locations = &mockLocationRepo{}
	}
	if deps.practitioners == nil {
		deps.practitioners = &mockPractitionerRepo{}
	}
	if deps.cascade == nil {
		deps.cascade = &mockCascadeRepo{}
	}
	if deps.grants == nil {
		deps.grants = &mockPermissionRepo{}
	}
	if deps.deletePolicy == "" {
		deps.deletePolicy = config.DeletePolicyCascade
	}

	return NewService(
		deps.locations,
		deps.practitioners,
		deps.cascade,
		authz.NewPolicy(deps.grants),
		security.NewNameSanitizer(),
		identity.NewBcryptHasher(),
		audit.NopRecorder{},
		metrics.NewCollector(prometheus.NewRegistry()),
		deps.deletePolicy,
	)
}
