// Package iam holds the static role and permission catalog.
package iam

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Permission names referenced by the route table
const (
	PermJourneysBuild        = "journeys.build"
	PermTemplatesManage      = "templates.manage"
	PermEmailsSendTest       = "emails.send_test"
	PermCampaignsManage      = "campaigns.manage"
	PermCampaignsSend        = "campaigns.send"
	PermIAMManage            = "iam.manage"
	PermUsersInvite          = "users.invite"
	PermDataIntegrationsMgmt = "data.integrations.manage"

	// Wildcard is granted to service credentials and satisfies every check
	Wildcard = "*"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// PermissionDef describes one catalog permission
type PermissionDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// RoleDef describes one catalog role and the permissions it grants
type RoleDef struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type catalogFile struct {
	Permissions []PermissionDef `yaml:"permissions"`
	Roles       []RoleDef       `yaml:"roles"`
}

// Catalog is an immutable role -> permission mapping. Accessors return copies.
type Catalog struct {
	permissions []PermissionDef
	roles       []RoleDef
	byRole      map[string][]string
	known       map[string]struct{}
}

// DefaultCatalog parses the embedded catalog
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// MustDefaultCatalog is DefaultCatalog for process startup
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog builds a Catalog from YAML. Every role permission must be declared.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse iam catalog: %w", err)
	}

	c := &Catalog{
		byRole: make(map[string][]string, len(file.Roles)),
		known:  make(map[string]struct{}, len(file.Permissions)),
	}
	for _, p := range file.Permissions {
		if p.Name == "" {
			return nil, fmt.Errorf("iam catalog: permission with empty name")
		}
		if _, dup := c.known[p.Name]; dup {
			return nil, fmt.Errorf("iam catalog: duplicate permission %q", p.Name)
		}
		c.known[p.Name] = struct{}{}
		c.permissions = append(c.permissions, p)
	}
	for _, r := range file.Roles {
		if r.Name == "" {
			return nil, fmt.Errorf("iam catalog: role with empty name")
		}
		if _, dup := c.byRole[r.Name]; dup {
			return nil, fmt.Errorf("iam catalog: duplicate role %q", r.Name)
		}
		perms := make([]string, 0, len(r.Permissions))
		seen := make(map[string]struct{}, len(r.Permissions))
		for _, p := range r.Permissions {
			if _, ok := c.known[p]; !ok {
				return nil, fmt.Errorf("iam catalog: role %q references unknown permission %q", r.Name, p)
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
		c.byRole[r.Name] = perms
		c.roles = append(c.roles, RoleDef{Name: r.Name, Description: r.Description, Permissions: perms})
	}
	return c, nil
}

// Permissions returns every declared permission in catalog order
func (c *Catalog) Permissions() []PermissionDef {
	out := make([]PermissionDef, len(c.permissions))
	copy(out, c.permissions)
	return out
}

// Roles returns every declared role in catalog order
func (c *Catalog) Roles() []RoleDef {
	out := make([]RoleDef, len(c.roles))
	for i, r := range c.roles {
		out[i] = RoleDef{Name: r.Name, Description: r.Description, Permissions: append([]string(nil), r.Permissions...)}
	}
	return out
}

// RoleNames returns the declared role names, sorted
func (c *Catalog) RoleNames() []string {
	names := make([]string, 0, len(c.byRole))
	for name := range c.byRole {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasRole reports whether name is a declared role
func (c *Catalog) HasRole(name string) bool {
	_, ok := c.byRole[name]
	return ok
}

// PermissionsFor returns the permissions granted by a role, or nil for unknown roles
func (c *Catalog) PermissionsFor(role string) []string {
	perms, ok := c.byRole[role]
	if !ok {
		return nil
	}
	return append([]string(nil), perms...)
}

// Has reports whether granted satisfies the required permission
func Has(granted []string, required string) bool {
	for _, p := range granted {
		if p == required || p == Wildcard {
			return true
		}
	}
	return false
}
