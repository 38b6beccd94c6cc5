package errors

import (
	"strings"
	"unicode"
)

// ValidateCrateName validates a crate name for safety and correctness.
// It rejects names that could be used for path traversal or injection
// attacks when interpolated into upstream URLs.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, backslash)
//   - Maximum length of 64 characters (crates.io's own limit)
//   - Only letters, digits, '-' and '_' (crates.io charset)
func ValidateCrateName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidCrate, "crate name cannot be empty")
	}

	if len(name) > 64 {
		return New(ErrCodeInvalidCrate, "crate name too long (max 64 characters)")
	}

	for _, pattern := range []string{"..", "//", "\x00", "\\"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidCrate, "crate name contains invalid characters: %q", pattern)
		}
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidCrate, "crate name contains invalid control characters")
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return New(ErrCodeInvalidCrate, "crate name contains invalid character %q", r)
		}
	}

	return nil
}

// ValidateVersion validates a version requirement string. "latest" is
// accepted as an alias for the registry's max version.
func ValidateVersion(version string) error {
	if version == "" || version == "latest" {
		return nil
	}
	if len(version) > 64 {
		return New(ErrCodeInvalidInput, "version string too long")
	}
	for _, r := range version {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune(".-+_", r) {
			return New(ErrCodeInvalidInput, "version contains invalid character %q", r)
		}
	}
	return nil
}
