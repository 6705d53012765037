package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/examsched/internal/authz"
	"github.com/hitoshi/examsched/internal/config"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
)

// CreatePractitionerInput は実施者登録の入力。
type CreatePractitionerInput struct {
	DisplayName string
	Email       string
	Password    string
	Role        model.Role
	LicenseID   string
	LegacyID    int64
}

// ListPractitioners は全実施者を返す。管理者専用。
func (s *Service) ListPractitioners(ctx context.Context, principal model.Principal) ([]*model.Practitioner, error) {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManagePractitioners, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.practitioners.List(ctx)
}

// CreatePractitioner は実施者を登録する。メールアドレスは
// 大文字小文字を無視して一意でなければならない。
func (s *Service) CreatePractitioner(ctx context.Context, principal model.Principal, in CreatePractitionerInput) (*model.Practitioner, error) {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManagePractitioners, authz.Resource{}); err != nil {
		return nil, err
	}

	name := s.sanitizer.Sanitize(in.DisplayName)
	if name == "" {
		return nil, model.NewValidationError("display_name", "must not be empty")
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewValidationError("email", "must be a valid address")
	}

	if in.Password == "" {
		return nil, model.NewValidationError("password", "must not be empty")
	}

	role := in.Role
	if role == "" {
		role = model.RolePractitioner
	}
	if !role.Valid() {
		return nil, model.NewValidationError("role", "must be admin or practitioner")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	now := time.Now()
	p := &model.Practitioner{
		ID:             uuid.New().String(),
		DisplayName:    name,
		Email:          email,
		CredentialHash: hash,
		Role:           role,
		LicenseID:      in.LicenseID,
		LegacyID:       in.LegacyID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.practitioners.Create(ctx, p)
	if errors.Is(err, repository.ErrDuplicateName) {
		return nil, model.NewDuplicateNameError(email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create practitioner: %w", err)
	}

	s.recorder.Record(ctx, principal.SubjectID, "practitioner_created", fmt.Sprintf("practitioner %q (%s) role=%s", name, p.ID, role))
	return p, nil
}

// DeletePractitioner は実施者を削除する。最後の管理者は削除できない。
// 依存する許可とイベントは検査地削除と同じポリシーに従う。
func (s *Service) DeletePractitioner(ctx context.Context, principal model.Principal, id string) error {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManagePractitioners, authz.Resource{}); err != nil {
		return err
	}

	err := s.cascade.DeletePractitioner(ctx, id, s.deletePolicy == config.DeletePolicyRestrict)
	switch {
	case errors.Is(err, repository.ErrLastAdmin):
		return model.NewInvariantViolationError("cannot delete the last administrator")
	case errors.Is(err, repository.ErrHasDependents):
		return model.NewConflictError("practitioner has scheduled events")
	case errors.Is(err, sql.ErrNoRows):
		return model.NewNotFoundError("practitioner", id)
	case err != nil:
		return fmt.Errorf("failed to delete practitioner: %w", err)
	}

	s.collector.RecordCascadeDelete("practitioner")
	slog.Info("practitioner deleted", slog.String("practitioner_id", id))
	s.recorder.Record(ctx, principal.SubjectID, "practitioner_deleted", fmt.Sprintf("practitioner %s with dependent grants and events", id))
	return nil
}

// ResetPassword は実施者の資格情報を再設定する。管理者専用。
func (s *Service) ResetPassword(ctx context.Context, principal model.Principal, id, newPassword string) error {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManagePractitioners, authz.Resource{}); err != nil {
		return err
	}

	if newPassword == "" {
		return model.NewValidationError("password", "must not be empty")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}

	err = s.practitioners.UpdateCredentialHash(ctx, id, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError("practitioner", id)
	}
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	s.recorder.Record(ctx, principal.SubjectID, "password_reset", fmt.Sprintf("practitioner %s", id))
	return nil
}
