package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"email-marketing-backend/internal/auth"
	"email-marketing-backend/internal/database/models"
	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// DefaultOrganizationSlug is the workspace new users join when none is given
const DefaultOrganizationSlug = "constellation"

// AuthService registers users and exchanges credentials for access tokens
type AuthService struct {
	users        repository.UserRepositoryInterface
	orgs         repository.OrganizationRepositoryInterface
	iam          IAMServiceInterface
	tokens       *auth.TokenService
	tokenTTL     time.Duration
	defaultRoles []string
	validator    *validator.Validate
}

// NewAuthService creates a new auth service
func NewAuthService(
	users repository.UserRepositoryInterface,
	orgs repository.OrganizationRepositoryInterface,
	iamService IAMServiceInterface,
	tokens *auth.TokenService,
	tokenTTL time.Duration,
	defaultRoles []string,
	validator *validator.Validate,
) *AuthService {
	return &AuthService{
		users:        users,
		orgs:         orgs,
		iam:          iamService,
		tokens:       tokens,
		tokenTTL:     tokenTTL,
		defaultRoles: defaultRoles,
		validator:    validator,
	}
}

// RegisterRequest represents the request to create a user account
type RegisterRequest struct {
	Email        string   `json:"email" validate:"required,email,max=255" example:"jane@example.com"`
	Password     string   `json:"password" validate:"required,min=8,max=128" example:"correct-horse-battery"`
	Organization string   `json:"organization,omitempty" validate:"max=100" example:"constellation"`
	FirstName    string   `json:"first_name,omitempty" validate:"max=100"`
	LastName     string   `json:"last_name,omitempty" validate:"max=100"`
	Roles        []string `json:"roles,omitempty"`
}

// LoginRequest represents the request to exchange credentials for a token
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email" example:"jane@example.com"`
	Password     string `json:"password" validate:"required" example:"correct-horse-battery"`
	Organization string `json:"organization,omitempty" example:"constellation"`
}

// AuthResponse represents an issued access token and the identity it carries
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
	Roles       []string     `json:"roles"`
	Permissions []string     `json:"permissions"`
}

// MeResponse represents the caller's user, token roles and current permissions
type MeResponse struct {
	User        UserResponse `json:"user"`
	Roles       []string     `json:"roles"`
	Permissions []string     `json:"permissions"`
}

// Register creates a user in the requested workspace, creating the workspace
// on first use, assigns its roles and returns a token
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	// roles must exist before they can be assigned
	if _, err := s.iam.Seed(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed IAM catalog: %w", err)
	}

	org, err := s.ensureOrganization(ctx, req.Organization)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, apperrors.ErrUserExists
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		firstName, _, _ = strings.Cut(req.Email, "@")
	}
	user := &models.User{
		OrganizationID: org.ID,
		Email:          req.Email,
		FirstName:      firstName,
		LastName:       strings.TrimSpace(req.LastName),
		PasswordHash:   hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	roleNames := req.Roles
	if len(normalizeNames(roleNames)) == 0 {
		roleNames = s.defaultRoles
	}
	assigned, err := s.iam.AssignRoles(ctx, user.ID, roleNames)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": user.ID.String(),
		"org_id":  org.ID.String(),
		"roles":   assigned.Roles,
	}).Info("User registered")
	return s.issue(user, assigned.Roles, assigned.Permissions)
}

// Login verifies credentials and returns a token. Unknown email, wrong
// password and a workspace the user does not belong to are indistinguishable
// authentication failures. Users without roles receive the default roles.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if wanted := strings.ToLower(strings.TrimSpace(req.Organization)); wanted != "" {
		org, err := s.orgs.GetByID(ctx, user.OrganizationID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to get organization: %w", err)
		}
		if org == nil || org.Slug != wanted {
			return nil, apperrors.ErrOrganizationMismatch
		}
	}

	roles := user.RoleNames()
	var permissions []string
	if len(roles) == 0 {
		assigned, err := s.iam.AssignRoles(ctx, user.ID, s.defaultRoles)
		if err != nil {
			return nil, err
		}
		roles = assigned.Roles
		permissions = assigned.Permissions
	} else {
		permissions, err = s.iam.ResolvePermissions(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	}
	return s.issue(user, roles, permissions)
}

// Me returns the caller's user record, the roles named in its token and the
// permissions its roles grant now
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID, tokenRoles []string) (*MeResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	permissions, err := s.iam.ResolvePermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if tokenRoles == nil {
		tokenRoles = []string{}
	}
	return &MeResponse{
		User:        toUserResponse(user, nil),
		Roles:       tokenRoles,
		Permissions: permissions,
	}, nil
}

func (s *AuthService) issue(user *models.User, roles, permissions []string) (*AuthResponse, error) {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}
	claims := auth.Claims{
		OrganizationID: user.OrganizationID.String(),
		Email:          user.Email,
		Roles:          roles,
		Permissions:    permissions,
	}
	claims.Subject = user.ID.String()

	token, err := s.tokens.Issue(claims, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokenTTL / time.Second),
		User:        toUserResponse(user, roles),
		Roles:       roles,
		Permissions: permissions,
	}, nil
}

// ensureOrganization returns the organization with the slug derived from
// name, creating it when absent. A concurrent creation of the same slug is
// resolved by re-reading the winner.
func (s *AuthService) ensureOrganization(ctx context.Context, name string) (*models.Organization, error) {
	orgSlug := slug.Make(strings.TrimSpace(name))
	if orgSlug == "" {
		orgSlug = DefaultOrganizationSlug
	}

	org, err := s.orgs.GetBySlug(ctx, orgSlug)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	org = &models.Organization{Name: titleFromSlug(orgSlug), Slug: orgSlug}
	if err := s.orgs.Create(ctx, org); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create organization: %w", err)
		}
		org, err = s.orgs.GetBySlug(ctx, orgSlug)
		if err != nil {
			return nil, fmt.Errorf("failed to get organization: %w", err)
		}
	}
	return org, nil
}

// titleFromSlug turns "acme-labs" into "Acme Labs"
func titleFromSlug(s string) string {
	words := strings.Split(s, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
