package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxNameLen bounds a sanitized path element.
const maxNameLen = 128

// SanitizeName turns a free-form label into a single path element. Anything
// other than ASCII letters, digits, dot, underscore and dash becomes one
// underscore per run.
func SanitizeName(s string) string {
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteRune('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}

// SessionDir returns the directory for one session's artifacts under
// outDir. The session name is sanitized and the result is checked to stay
// inside outDir after symlinks in existing parents are resolved.
func SessionDir(outDir, session string) (string, error) {
	dir := filepath.Join(outDir, SanitizeName(session))
	if err := withinDir(dir, outDir); err != nil {
		return "", err
	}
	return dir, nil
}

// withinDir reports an error when path resolves outside root.
func withinDir(path, root string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	rel, err := filepath.Rel(canonical(absRoot), canonical(absPath))
	if err != nil {
		return fmt.Errorf("%s is outside %s: %w", path, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s escapes %s", path, root)
	}
	return nil
}

// canonical resolves symlinks in the longest existing prefix of abs and
// appends the rest unchanged.
func canonical(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for dir := abs; ; {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, abs)
			return filepath.Join(resolved, rest)
		}
		dir = parent
	}
}
