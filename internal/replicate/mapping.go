package replicate

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Rebase maps a path under fromRoot to the corresponding path under
// toRoot, preserving the relative suffix. It is a structural prefix
// operation rather than a string substitution, so a snapshot name that
// recurs deeper in the path can never be rewritten by accident.
func Rebase(path, fromRoot, toRoot string) (string, error) {
	rel, err := filepath.Rel(fromRoot, path)
	if err != nil {
		return "", fmt.Errorf("rebase %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("rebase %s: not under %s", path, fromRoot)
	}
	if rel == "." {
		return toRoot, nil
	}
	return filepath.Join(toRoot, rel), nil
}
