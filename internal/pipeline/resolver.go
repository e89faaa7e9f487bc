// internal/pipeline/resolver.go
package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// projectMarkers are the files whose presence identifies a project root when
// git cannot answer.
var projectMarkers = []string{".git", "go.mod", "pyproject.toml", "package.json", "Cargo.toml"}

// ProjectResolver maps artifact-reported paths onto project-root-relative
// paths, rejecting anything that escapes the root.
type ProjectResolver struct {
	root string
}

// NewProjectResolver builds a resolver rooted at root; an empty root triggers
// auto-detection.
func NewProjectResolver(root string) (*ProjectResolver, error) {
	if root == "" {
		detected, err := determineProjectRoot()
		if err != nil {
			return nil, err
		}
		root = detected
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to absolutize project root %s: %w", root, err)
	}
	return &ProjectResolver{root: abs}, nil
}

// Root returns the absolute project root.
func (r *ProjectResolver) Root() string { return r.root }

// Resolve returns the project-relative form of path. Absolute paths must live
// under the root; relative paths must not climb out of it.
func (r *ProjectResolver) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, path)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the project root", path)
	}
	return filepath.ToSlash(rel), nil
}

// Abs returns the absolute on-disk location of a project-relative path.
func (r *ProjectResolver) Abs(relPath string) string {
	return filepath.Join(r.root, filepath.FromSlash(relPath))
}

// determineProjectRoot finds the root of the project under analysis: git
// first, then a marker-file walk up from the working directory.
func determineProjectRoot() (string, error) {
	if _, err := exec.LookPath("git"); err == nil {
		cmd := exec.Command("git", "rev-parse", "--show-toplevel")
		output, err := cmd.Output()
		if err == nil {
			return strings.TrimSpace(string(output)), nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir { // Reached the filesystem root.
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find project root (no git repository or project marker found in CWD or parent directories)")
}
