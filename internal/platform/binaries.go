package platform

import (
	"fmt"
	"os/exec"
	"strings"
)

// RequiredBinaries lists the external tools the pipeline shells out to.
var RequiredBinaries = []string{
	"yt-dlp",
	"ffmpeg",
	"ffprobe",
}

type Dependency struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Found bool   `json:"found" yaml:"found"`
}

// DependencyStatus resolves each binary on PATH. Configured overrides
// (e.g. a custom yt-dlp location) replace the default names.
func DependencyStatus(names ...string) []Dependency {
	if len(names) == 0 {
		names = RequiredBinaries
	}
	deps := make([]Dependency, 0, len(names))
	for _, bin := range names {
		d := Dependency{Name: bin}
		if path, err := exec.LookPath(bin); err == nil {
			d.Path = path
			d.Found = true
		}
		deps = append(deps, d)
	}
	return deps
}

func ValidateDependencies(names ...string) error {
	var missing []string
	for _, d := range DependencyStatus(names...) {
		if !d.Found {
			missing = append(missing, d.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required dependency not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
