package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuentas-labs/cuentas/internal/domain"
)

// Registry resolves driver names to executable scripts in one
// directory. Drivers are plain executables (shebang scripts or
// binaries) outside this process's control.
type Registry struct {
	dir string
}

// NewRegistry creates a registry over the given drivers directory.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// Dir returns the drivers directory.
func (r *Registry) Dir() string { return r.dir }

// Resolve maps a driver name to its script path. Candidates are tried
// in order: the bare name, then .py and .sh variants.
func (r *Registry) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: account has no driver configured", domain.ErrDriverNotFound)
	}
	// Names are bare identifiers, never paths.
	name = filepath.Base(name)

	for _, candidate := range []string{name, name + ".py", name + ".sh"} {
		path := filepath.Join(r.dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %q in %s", domain.ErrDriverNotFound, name, r.dir)
}

// Available reports whether a driver script exists for the name.
// Used at submission time so a task is never created for an account
// with no resolvable driver.
func (r *Registry) Available(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}
