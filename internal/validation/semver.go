// semver.go provides version and version-constraint checks used for the compatibleWith field
// of registry entries.
package validation

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// ValidateConstraint validates that s is a version constraint such as "1.0" or ">= 1.2, < 2.0"
func ValidateConstraint(s string) error {
	if _, err := version.NewConstraint(s); err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}
	return nil
}
