package core

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// HasErrors returns true if there are any errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Add adds a validation error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// Validator collects every problem with a configuration instead of
// stopping at the first.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Required validates that a field is not empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "is required")
	}
	return v
}

// MinDuration validates that a duration is at least the minimum.
func (v *Validator) MinDuration(field string, value, min time.Duration) *Validator {
	if value < min {
		v.errors.Add(field, fmt.Sprintf("must be at least %v", min))
	}
	return v
}

// Min validates that an integer is at least the minimum.
func (v *Validator) Min(field string, value, min int) *Validator {
	if value < min {
		v.errors.Add(field, fmt.Sprintf("must be at least %d", min))
	}
	return v
}

// MinFloat validates that a float is at least the minimum.
func (v *Validator) MinFloat(field string, value, min float64) *Validator {
	if value < min {
		v.errors.Add(field, fmt.Sprintf("must be at least %g", min))
	}
	return v
}

// OneOf validates that a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.errors.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// DirectoryExists validates that a directory exists.
func (v *Validator) DirectoryExists(field, path string) *Validator {
	if path == "" {
		return v
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			v.errors.Add(field, fmt.Sprintf("directory does not exist: %s", path))
		} else {
			v.errors.Add(field, fmt.Sprintf("cannot access directory: %v", err))
		}
		return v
	}
	if !info.IsDir() {
		v.errors.Add(field, fmt.Sprintf("not a directory: %s", path))
	}
	return v
}

// Check records err, if any, against field.
func (v *Validator) Check(field string, err error) *Validator {
	if err != nil {
		v.errors.Add(field, err.Error())
	}
	return v
}

// Errors returns all validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Validate returns an error if there are validation errors.
func (v *Validator) Validate() error {
	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// ValidateScanOptions validates ScanOptions.
func ValidateScanOptions(opts *ScanOptions) error {
	if opts == nil {
		return nil
	}
	v := NewValidator()
	v.DirectoryExists("work_dir", opts.WorkDir)
	return v.Validate()
}
