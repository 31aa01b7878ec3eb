package project

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/csbuild/csbuild/internal/ordered"
)

// DiscoveryOptions configures the auto-discovery walk (flatten step 4).
type DiscoveryOptions struct {
	WorkingDirectory  string
	ExtraDirectories  []string
	ExcludeDirectories []string
	SkipDirectories   []string // intermediate/output/.csbuild dirs, always skipped
	PreviousArtifacts map[string]bool
	SearchExtensions  *ordered.Set[string]
}

func cleanAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func underAny(path string, dirs []string) bool {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		rel, err := filepath.Rel(d, path)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && rel != "") {
			return true
		}
	}
	return false
}

// Discover walks the working directory plus any extra directories, skipping
// intermediate/output/csbuild dirs, excluded dirs, and any file already
// present in the previous run's ledger, and returns every remaining file
// whose extension the toolchain searches for.
func Discover(opts DiscoveryOptions) ([]string, error) {
	skip := make([]string, 0, len(opts.SkipDirectories)+len(opts.ExcludeDirectories))
	for _, d := range opts.SkipDirectories {
		skip = append(skip, cleanAbs(d))
	}
	for _, d := range opts.ExcludeDirectories {
		skip = append(skip, cleanAbs(d))
	}

	roots := append([]string{opts.WorkingDirectory}, opts.ExtraDirectories...)

	var found []string
	seen := make(map[string]bool)
	for _, root := range roots {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			abs := cleanAbs(path)
			if d.IsDir() {
				if underAny(abs, skip) {
					return filepath.SkipDir
				}
				return nil
			}
			if underAny(abs, skip) {
				return nil
			}
			if opts.PreviousArtifacts != nil && opts.PreviousArtifacts[abs] {
				return nil
			}
			ext := filepath.Ext(abs)
			if opts.SearchExtensions != nil && !opts.SearchExtensions.Has(ext) {
				return nil
			}
			if !seen[abs] {
				seen[abs] = true
				found = append(found, abs)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}
