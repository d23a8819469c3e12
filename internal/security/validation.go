// Package security provides input validation functionality.
package security

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/avissapr/firmdesk/internal/models"
)

var (
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	numberPattern  = regexp.MustCompile(`[0-9]`)
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// ValidationService provides centralized input validation functions.
// All validation methods return descriptive errors that are safe to show to users.
type ValidationService struct {
	config *SecurityConfig
}

// NewValidationService creates a new validation service with security configuration.
func NewValidationService(config *SecurityConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

// ValidateEmail validates email address format according to RFC 5322.
func (v *ValidationService) ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	if len(email) > 255 {
		return fmt.Errorf("email must be less than 255 characters")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// ValidatePassword validates password meets minimum security requirements.
// Requirements: At least 8 characters, contains uppercase, lowercase, and number.
func (v *ValidationService) ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	if len(password) > 128 {
		return fmt.Errorf("password must be less than 128 characters")
	}

	if !upperPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}

	if !lowerPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}

	if !numberPattern.MatchString(password) {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

// ValidateTaskTitle validates task title presence and length.
func (v *ValidationService) ValidateTaskTitle(title string) error {
	if err := v.ValidateRequired("title", title); err != nil {
		return err
	}
	return v.ValidateLength("title", strings.TrimSpace(title), 1, v.config.MaxTitleLength)
}

// ValidateDescription validates an optional task description.
func (v *ValidationService) ValidateDescription(description string) error {
	return v.ValidateLength("description", description, 0, v.config.MaxDescriptionLength)
}

// ValidateRemarks validates reviewer remarks. Rejections require remarks;
// approvals accept them optionally.
func (v *ValidationService) ValidateRemarks(remarks string, required bool) error {
	if required {
		if err := v.ValidateRequired("remarks", remarks); err != nil {
			return err
		}
	}
	return v.ValidateLength("remarks", remarks, 0, v.config.MaxRemarksLength)
}

// ValidateUserRole validates user role is one of the allowed values.
func (v *ValidationService) ValidateUserRole(role string) error {
	if role == "" {
		return fmt.Errorf("role is required")
	}

	if !models.Role(role).Valid() {
		return fmt.Errorf("invalid role (must be 'owner', 'manager', 'staff' or 'individual')")
	}

	return nil
}

// ValidateTaskStatus validates a requested task status.
func (v *ValidationService) ValidateTaskStatus(status string) error {
	if status == "" {
		return fmt.Errorf("status is required")
	}
	if !models.TaskStatus(status).Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	return nil
}

// ValidatePriority validates a task priority.
func (v *ValidationService) ValidatePriority(priority string) error {
	if !models.Priority(priority).Valid() {
		return fmt.Errorf("invalid priority (must be 'low', 'medium', 'high' or 'urgent')")
	}
	return nil
}

// SanitizeString removes control characters (except newline and tab) and trims whitespace.
func (v *ValidationService) SanitizeString(input string) string {
	input = controlPattern.ReplaceAllString(input, "")
	return strings.TrimSpace(input)
}

// ValidateRequired checks if a required field is present and non-empty.
func (v *ValidationService) ValidateRequired(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	return nil
}

// ValidateLength validates string length is within bounds.
func (v *ValidationService) ValidateLength(fieldName string, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}

	if length > max {
		return fmt.Errorf("%s must be %d characters or less", fieldName, max)
	}

	return nil
}

// ClampPage applies the configured page size bounds to a requested limit.
// Zero or negative limits select the default page size.
func (v *ValidationService) ClampPage(limit int) int {
	if limit <= 0 {
		return v.config.DefaultPageSize
	}
	if limit > v.config.MaxPageSize {
		return v.config.MaxPageSize
	}
	return limit
}
