package iam

import (
	"fmt"
	"strings"
)

// UnknownRolePolicy decides what role assignment does with names absent from the catalog
type UnknownRolePolicy string

const (
	// UnknownRolesIgnore drops unknown names and assigns the rest
	UnknownRolesIgnore UnknownRolePolicy = "ignore"
	// UnknownRolesReject fails the whole assignment
	UnknownRolesReject UnknownRolePolicy = "reject"
)

// ParseUnknownRolePolicy maps a config value to a policy
func ParseUnknownRolePolicy(value string) (UnknownRolePolicy, error) {
	switch UnknownRolePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", UnknownRolesIgnore:
		return UnknownRolesIgnore, nil
	case UnknownRolesReject:
		return UnknownRolesReject, nil
	}
	return "", fmt.Errorf("unknown role policy %q", value)
}
