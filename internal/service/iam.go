package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"email-marketing-backend/internal/database/models"
	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/iam"
	"email-marketing-backend/internal/logger"
	"email-marketing-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IAMService persists the role catalog and manages role assignment
type IAMService struct {
	roles   repository.RoleRepositoryInterface
	users   repository.UserRepositoryInterface
	catalog *iam.Catalog
	policy  iam.UnknownRolePolicy
}

// NewIAMService creates a new IAM service
func NewIAMService(roles repository.RoleRepositoryInterface, users repository.UserRepositoryInterface, catalog *iam.Catalog, policy iam.UnknownRolePolicy) *IAMService {
	if policy == "" {
		policy = iam.UnknownRolesIgnore
	}
	return &IAMService{
		roles:   roles,
		users:   users,
		catalog: catalog,
		policy:  policy,
	}
}

// SeedResult reports what Seed wrote
type SeedResult struct {
	Permissions int `json:"permissions"`
	Roles       int `json:"roles"`
}

// RoleAssignmentRequest represents the request to replace a user's roles
type RoleAssignmentRequest struct {
	Roles []string `json:"roles"`
}

// RoleAssignmentResponse represents the roles and permissions a user holds after assignment
type RoleAssignmentResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	Ignored     []string  `json:"ignored,omitempty"`
}

// Catalog returns the catalog the service seeds from
func (s *IAMService) Catalog() *iam.Catalog {
	return s.catalog
}

// Seed upserts every catalog permission and role and makes each role's
// permission set match the catalog. It runs in one transaction and may be
// called any number of times, including concurrently.
func (s *IAMService) Seed(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{}
	err := s.roles.Transaction(ctx, func(repo repository.RoleRepositoryInterface) error {
		perms := make(map[string]models.Permission, len(s.catalog.Permissions()))
		for _, def := range s.catalog.Permissions() {
			perm, err := repo.EnsurePermission(ctx, def.Name, def.Description)
			if err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", def.Name, err)
			}
			perms[def.Name] = *perm
		}

		for _, def := range s.catalog.Roles() {
			role, err := repo.EnsureRole(ctx, def.Name, def.Description)
			if err != nil {
				return fmt.Errorf("failed to seed role %s: %w", def.Name, err)
			}
			granted := make([]models.Permission, 0, len(def.Permissions))
			for _, name := range def.Permissions {
				granted = append(granted, perms[name])
			}
			if err := repo.ReplacePermissions(ctx, role, granted); err != nil {
				return fmt.Errorf("failed to set permissions of role %s: %w", def.Name, err)
			}
		}
		result.Permissions = len(perms)
		result.Roles = len(s.catalog.Roles())
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).WithFields(map[string]interface{}{
		"permissions": result.Permissions,
		"roles":       result.Roles,
	}).Info("IAM catalog seeded")
	return result, nil
}

// AssignRoles replaces the role set of userID with roleNames. Names that are
// not stored roles are dropped or rejected depending on the unknown-role
// policy. An empty list removes every role.
func (s *IAMService) AssignRoles(ctx context.Context, userID uuid.UUID, roleNames []string) (*RoleAssignmentResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return s.assign(ctx, user, roleNames)
}

// AssignOrganizationUserRoles is AssignRoles restricted to users of orgID.
// Users of other organizations are reported as not found.
func (s *IAMService) AssignOrganizationUserRoles(ctx context.Context, orgID, userID uuid.UUID, roleNames []string) (*RoleAssignmentResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.OrganizationID != orgID {
		return nil, apperrors.ErrUserNotFound
	}
	return s.assign(ctx, user, roleNames)
}

func (s *IAMService) assign(ctx context.Context, user *models.User, roleNames []string) (*RoleAssignmentResponse, error) {
	names := normalizeNames(roleNames)
	roles, err := s.roles.GetByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}

	found := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		found[r.Name] = struct{}{}
	}
	var unknown []string
	for _, n := range names {
		if _, ok := found[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 && s.policy == iam.UnknownRolesReject {
		return nil, apperrors.NewValidationError("roles", "unknown roles: "+strings.Join(unknown, ", "))
	}

	if err := s.users.ReplaceRoles(ctx, user, roles); err != nil {
		return nil, fmt.Errorf("failed to assign roles: %w", err)
	}
	perms, err := s.users.PermissionNames(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	assigned := make([]string, 0, len(roles))
	for _, r := range roles {
		assigned = append(assigned, r.Name)
	}
	sort.Strings(assigned)

	if len(unknown) > 0 {
		logger.WithContext(ctx).WithFields(map[string]interface{}{
			"user_id": user.ID.String(),
			"ignored": unknown,
		}).Warn("Ignoring unknown roles in assignment")
	}
	return &RoleAssignmentResponse{
		UserID:      user.ID,
		Roles:       assigned,
		Permissions: perms,
		Ignored:     unknown,
	}, nil
}

// ResolvePermissions returns the sorted, deduplicated permissions granted to
// userID through its roles. A user without roles has no permissions.
func (s *IAMService) ResolvePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	perms, err := s.users.PermissionNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, nil
}

// normalizeNames trims, drops empty entries and deduplicates, keeping order
func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
