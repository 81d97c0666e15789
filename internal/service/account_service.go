package service

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/google/uuid"
)

// FederatedIdentity is what an external identity provider vouches for.
type FederatedIdentity struct {
	Email      string
	Fullname   string
	ProfileImg string
}

// IdentityFederation verifies tokens issued by an external identity provider.
type IdentityFederation interface {
	Verify(ctx context.Context, token string) (FederatedIdentity, error)
}

type AccountService struct {
	accountRepo repository.AccountRepository
	federation  IdentityFederation
}

func NewAccountService(accountRepo repository.AccountRepository, federation IdentityFederation) *AccountService {
	return &AccountService{accountRepo: accountRepo, federation: federation}
}

func (s *AccountService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// SignInFederated verifies token with the identity provider and returns the matching
// account, creating it on first sign-in.
func (s *AccountService) SignInFederated(ctx context.Context, token string) (*models.Account, error) {
	if strings.TrimSpace(token) == "" {
		return nil, models.NewValidationError("Identity token is required")
	}
	if s.federation == nil {
		return nil, models.NewUpstreamError("identity provider", errors.New("not configured"))
	}

	identity, err := s.federation.Verify(ctx, token)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, models.NewUpstreamError("identity provider", err)
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, models.NewValidationError("Identity provider returned no usable email")
	}

	existing, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	username, err := s.UniqueUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		Username:   username,
		Fullname:   strings.TrimSpace(identity.Fullname),
		Email:      email,
		ProfileImg: identity.ProfileImg,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		if !models.IsCode(err, models.CodeConflict) {
			return nil, err
		}
		// Lost a race with a concurrent first sign-in for the same email.
		existing, getErr := s.accountRepo.GetByEmail(ctx, email)
		if getErr != nil || existing == nil {
			return nil, err
		}
		return existing, nil
	}
	return account, nil
}

// UniqueUsername derives a username from the local part of email, adding a short
// random suffix when the plain local part is taken.
func (s *AccountService) UniqueUsername(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		local = "user"
	}
	taken, err := s.accountRepo.UsernameExists(ctx, local)
	if err != nil {
		return "", err
	}
	if !taken {
		return local, nil
	}
	return local + strings.ReplaceAll(uuid.NewString(), "-", "")[:5], nil
}
