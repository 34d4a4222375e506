package conf

import (
	"os"
	"path/filepath"
)

// candidateNames are the config file names probed in order by FindConfig.
var candidateNames = []string{
	"checkup.yml",
	"checkup.dist.yml",
	".checkup.yml",
}

// FindConfig returns the first candidate config file found in workDir, or
// ErrNoConfig when none exists.
func FindConfig(workDir string) (string, error) {
	for _, name := range candidateNames {
		p := filepath.Join(workDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", ErrNoConfig
}
