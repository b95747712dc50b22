package localstate

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envHome    = "DOCUPILOT_HOME" // override for tests
	dirName    = ".docupilot"     // default under $HOME
	dbFilename = "state.db"
)

// DataDir returns the directory where durable client state lives (~/.docupilot).
// An explicit dir wins over the environment override. The directory is
// created with 0700 permissions if it does not exist.
func DataDir(dir string) (string, error) {
	if dir == "" {
		dir = os.Getenv(envHome)
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// DBPath returns the absolute path to the SQLite state file under dir.
func DBPath(dir string) (string, error) {
	d, err := DataDir(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(d, dbFilename), nil
}
