package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
	"github.com/hitoshi/examsched/internal/security"
)

// Service はログインとセッション発行のビジネスロジックを提供する。
type Service struct {
	practitioners repository.PractitionerRepository
	hasher        CredentialHasher
	issuer        SessionIssuer
}

// NewService はServiceを生成する。
func NewService(practitioners repository.PractitionerRepository, hasher CredentialHasher, issuer SessionIssuer) *Service {
	return &Service{practitioners: practitioners, hasher: hasher, issuer: issuer}
}

// Login はメールとパスワードを照合し、セッショントークンを発行する。
// メール未登録とパスワード不一致は同じAuthenticationErrorに畳む。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Principal, string, error) {
	if email == "" || password == "" {
		return nil, "", model.NewAuthenticationError()
	}

	p, err := s.practitioners.FindByEmail(ctx, security.NormalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up practitioner: %w", err)
	}
	if p == nil || !s.hasher.Verify(password, p.CredentialHash) {
		return nil, "", model.NewAuthenticationError()
	}

	principal := model.Principal{SubjectID: p.ID, Role: p.Role, Email: p.Email}
	token, err := s.issuer.Issue(principal)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	slog.Info("practitioner logged in",
		slog.String("practitioner_id", p.ID),
		slog.String("role", string(p.Role)),
	)
	return &principal, token, nil
}
