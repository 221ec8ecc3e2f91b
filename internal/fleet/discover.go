package fleet

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNoConfig is returned when no launch configuration could be found.
var ErrNoConfig = errors.New("no launch config found")

// DefaultConfigNames are the file names searched for, in order, when no
// config path is given.
var DefaultConfigNames = []string{"launch.json", "launch.toml", "launch.yaml", "launch.yml"}

// ProjectRoot returns the nearest ancestor of dir (inclusive) that contains a
// .git entry. If there is none, dir itself is returned.
func ProjectRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		cur = parent
	}
}

// FindConfig looks for a default config file in the project root that
// contains dir.
func FindConfig(dir string) (string, error) {
	root, err := ProjectRoot(dir)
	if err != nil {
		return "", err
	}

	for _, name := range DefaultConfigNames {
		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", ErrNoConfig
}
