package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// Is enables errors.Is() comparison for NotFoundError
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return e.Entity == t.Entity
}

// AlreadyExistsError represents an error when an entity already exists
type AlreadyExistsError struct {
	Entity  string
	Context string // Additional context like "in organization"
}

func (e *AlreadyExistsError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s already exists %s", e.Entity, e.Context)
	}
	return fmt.Sprintf("%s already exists", e.Entity)
}

// Is enables errors.Is() comparison for AlreadyExistsError
func (e *AlreadyExistsError) Is(target error) bool {
	t, ok := target.(*AlreadyExistsError)
	if !ok {
		return false
	}
	return e.Entity == t.Entity
}

// ValidationError represents a validation error. Fields carries per-field
// messages when more than one field failed.
type ValidationError struct {
	Field   string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
	}
	if e.Message == "" && len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("validation error: invalid fields %s", strings.Join(keys, ", "))
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Details returns a field -> message map suitable for API responses
func (e *ValidationError) Details() map[string]string {
	if len(e.Fields) > 0 {
		return e.Fields
	}
	if e.Field != "" {
		return map[string]string{e.Field: e.Message}
	}
	return nil
}

// AuthenticationError represents authentication-related errors
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// AuthorizationError represents authorization-related errors
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// PreconditionError means the request was well formed but the current state of
// the resource does not allow it
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// ConflictError means the resource is in a state that conflicts with the request
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ConfigurationError represents configuration-related errors
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Entity Not Found Errors
var (
	ErrOrganizationNotFound = &NotFoundError{Entity: "organization"}
	ErrUserNotFound         = &NotFoundError{Entity: "user"}
	ErrRoleNotFound         = &NotFoundError{Entity: "role"}
	ErrPermissionNotFound   = &NotFoundError{Entity: "permission"}
	ErrContactNotFound      = &NotFoundError{Entity: "contact"}
	ErrTemplateNotFound     = &NotFoundError{Entity: "template"}
	ErrCampaignNotFound     = &NotFoundError{Entity: "campaign"}
)

// Already Exists Errors
var (
	ErrOrganizationExists = &AlreadyExistsError{Entity: "organization", Context: "with this name or slug"}
	ErrUserExists         = &AlreadyExistsError{Entity: "user", Context: "with this email"}
	ErrContactExists      = &AlreadyExistsError{Entity: "contact", Context: "with this email in the organization"}
	ErrTemplateExists     = &AlreadyExistsError{Entity: "template", Context: "with this name in the organization"}
)

// Business Logic Errors
var (
	ErrTemplateInUse          = &ConflictError{Message: "template is used by one or more campaigns"}
	ErrNoContacts             = &PreconditionError{Message: "No contacts found for this workspace"}
	ErrNoRecipients           = &PreconditionError{Message: "No recipients set for custom campaign"}
	ErrCampaignTemplateAbsent = &PreconditionError{Message: "Campaign template not found"}
	ErrInvalidAudienceType    = &ValidationError{Field: "audience_type", Message: "must be one of all_contacts, custom"}
	ErrRecipientsRequired     = &ValidationError{Field: "recipients", Message: "recipients are required for custom campaigns"}
	ErrEnqueueFailed          = errors.New("failed to enqueue campaign dispatch")
	ErrDeliveryFailed         = errors.New("email delivery failed")
)

// Authentication Errors
var (
	ErrInvalidCredentials   = &AuthenticationError{Message: "Invalid credentials"}
	ErrMissingCredentials   = &AuthenticationError{Message: "Missing credentials"}
	ErrInvalidToken         = &AuthenticationError{Message: "Invalid or expired token"}
	ErrUserRequired         = &AuthenticationError{Message: "User credentials required"}
	ErrInsufficientPerms    = &AuthorizationError{Message: "Insufficient permissions"}
	ErrInternalOnly         = &AuthorizationError{Message: "Service credentials required"}
	ErrCrossOrganization    = &AuthorizationError{Message: "Cannot access another workspace"}
	ErrOrganizationMismatch = &AuthenticationError{Message: "User does not belong to this workspace"}
)

// Configuration Errors
var (
	ErrJWTSecretNotSet   = &ConfigurationError{Message: "JWT_SECRET must be set in production"}
	ErrAPIKeysNotSet     = &ConfigurationError{Message: "API_KEYS must contain at least one key in production"}
	ErrRedisURLNotSet    = &ConfigurationError{Message: "REDIS_URL is required when QUEUE_BACKEND=redis"}
	ErrUnknownMailer     = &ConfigurationError{Message: "MAIL_PROVIDER must be one of smtp, ses, log"}
	ErrUnknownQueue      = &ConfigurationError{Message: "QUEUE_BACKEND must be one of memory, redis"}
	ErrUnknownRolePolicy = &ConfigurationError{Message: "IAM_UNKNOWN_ROLE_POLICY must be one of ignore, reject"}
)

// Helper Functions

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.Is(err, &NotFoundError{}) || errors.As(err, &notFoundErr)
}

// IsAlreadyExists checks if an error is an AlreadyExistsError
func IsAlreadyExists(err error) bool {
	var existsErr *AlreadyExistsError
	return errors.Is(err, &AlreadyExistsError{}) || errors.As(err, &existsErr)
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsAuthentication checks if an error is an AuthenticationError
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsAuthorization checks if an error is an AuthorizationError
func IsAuthorization(err error) bool {
	var authzErr *AuthorizationError
	return errors.As(err, &authzErr)
}

// IsPrecondition checks if an error is a PreconditionError
func IsPrecondition(err error) bool {
	var preErr *PreconditionError
	return errors.As(err, &preErr)
}

// IsConflict checks if an error is a ConflictError
func IsConflict(err error) bool {
	var conflictErr *ConflictError
	return errors.As(err, &conflictErr)
}

// IsConfiguration checks if an error is a ConfigurationError
func IsConfiguration(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}

// NewNotFoundError creates a new NotFoundError for a custom entity
func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

// NewAlreadyExistsError creates a new AlreadyExistsError for a custom entity
func NewAlreadyExistsError(entity, context string) error {
	return &AlreadyExistsError{Entity: entity, Context: context}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewFieldsValidationError creates a ValidationError carrying several field messages
func NewFieldsValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(message string) error {
	return &AuthenticationError{Message: message}
}

// NewAuthorizationError creates a new AuthorizationError
func NewAuthorizationError(message string) error {
	return &AuthorizationError{Message: message}
}

// NewPreconditionError creates a new PreconditionError
func NewPreconditionError(message string) error {
	return &PreconditionError{Message: message}
}

// NewCampaignStateConflict reports a send trigger against a campaign that is already in flight or done
func NewCampaignStateConflict(status string) error {
	return &ConflictError{Message: fmt.Sprintf("Campaign is already %s", status)}
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(message string) error {
	return &ConfigurationError{Message: message}
}
