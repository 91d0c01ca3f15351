package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is the process-wide scratch directory. Every item gets its own
// subdirectory so concurrent downloads of same-titled videos never collide.
type Workspace struct {
	Root string
}

// NewWorkspace creates a fresh directory under base (the OS temp dir when
// base is empty).
func NewWorkspace(base string) (*Workspace, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
	}
	root, err := os.MkdirTemp(base, "goytbot_")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{Root: root}, nil
}

// ItemDir creates a new uniquely named directory for one item.
func (w *Workspace) ItemDir() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate item id: %w", err)
	}
	dir := filepath.Join(w.Root, id.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create item dir: %w", err)
	}
	return dir, nil
}

// Release deletes an item directory. Paths outside the workspace are refused.
func (w *Workspace) Release(dir string) error {
	rel, err := filepath.Rel(w.Root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to remove %s outside workspace %s", dir, w.Root)
	}
	return os.RemoveAll(dir)
}

// Close removes the whole workspace.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.Root)
}
