package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PathValidator validates user-provided flow file paths to prevent directory
// traversal outside the flows directory. Validation is layered: lexical
// checks first, then normalization, then containment against the resolved
// base directory.
type PathValidator struct {
	basePath     string
	resolvedBase string
}

// ValidationError represents a path validation failure with context for
// logging.
type ValidationError struct {
	UserPath  string
	Reason    string
	Timestamp time.Time
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("path validation failed: %s (input: %s)", e.Reason, e.UserPath)
}

// NewPathValidator creates a validator rooted at the given base directory.
// The base must be an absolute path to an existing directory; symbolic links
// in it are resolved once up front.
func NewPathValidator(basePath string) (*PathValidator, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(basePath) {
		return nil, fmt.Errorf("base path must be absolute: %s", basePath)
	}

	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("base path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path is not a directory: %s", basePath)
	}

	resolved, err := filepath.EvalSymlinks(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	return &PathValidator{
		basePath:     basePath,
		resolvedBase: resolved,
	}, nil
}

// BasePath returns the directory the validator is rooted at.
func (v *PathValidator) BasePath() string {
	return v.basePath
}

// Validate checks a user-supplied relative path and returns the absolute
// path it resolves to inside the base directory. Absolute paths, parent
// references and separator-bearing names are rejected.
func (v *PathValidator) Validate(userPath string) (string, error) {
	if userPath == "" {
		return "", v.reject(userPath, "path cannot be empty")
	}
	if filepath.IsAbs(userPath) {
		return "", v.reject(userPath, "absolute paths are not allowed")
	}
	if strings.Contains(userPath, "..") {
		return "", v.reject(userPath, "parent directory references are not allowed")
	}
	if strings.ContainsAny(userPath, `/\`) {
		return "", v.reject(userPath, "path separators are not allowed in flow names")
	}

	full := filepath.Join(v.resolvedBase, filepath.Clean(userPath))

	// Containment check after normalization, in case Clean produced
	// something unexpected.
	rel, err := filepath.Rel(v.resolvedBase, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", v.reject(userPath, "path escapes the flows directory")
	}

	return full, nil
}

func (v *PathValidator) reject(userPath, reason string) error {
	return &ValidationError{
		UserPath:  userPath,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}
