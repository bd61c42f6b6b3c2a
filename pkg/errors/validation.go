package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
//
// Grammar-level validation (lowercase, allowed punctuation) is done by
// ValidateRecipeName.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "package name too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "package name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// recipeNameRegex matches valid recipe names: lowercase alphanumeric with
// interior dashes, matching the naming convention of build recipe
// repositories (e.g. "hpx-kokkos", "cppuddle").
var recipeNameRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateRecipeName validates a recipe (package) name against the recipe
// naming grammar.
func ValidateRecipeName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !recipeNameRegex.MatchString(name) {
		return New(ErrCodeInvalidRecipe, "invalid recipe name: %q", name)
	}

	return nil
}

// variantNameRegex matches valid variant names: lowercase alphanumeric with
// interior underscores (e.g. "cuda", "kokkos_hpx_kernels").
var variantNameRegex = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// ValidateVariantName validates a variant name.
func ValidateVariantName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidRecipe, "variant name cannot be empty")
	}

	if !variantNameRegex.MatchString(name) {
		return New(ErrCodeInvalidRecipe, "invalid variant name: %q", name)
	}

	return nil
}

// ValidateRecipeFilename validates a recipe filename for safety.
// It ensures the filename is a simple basename without path components.
func ValidateRecipeFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidRecipe, "recipe filename cannot be empty")
	}

	// Must be a simple filename, not a path
	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidRecipe, "recipe filename cannot contain path separators")
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidRecipe, "recipe filename cannot be a hidden file")
	}

	return nil
}
