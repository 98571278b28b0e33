package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kvconsole/kvconsole/internal/validate"
)

const (
	DefaultInstance = "default"

	// HomeEnv overrides the kvconsole home directory.
	HomeEnv = "KVCONSOLE_HOME"
)

// InstancePaths contains all paths for a kvconsole instance.
type InstancePaths struct {
	Name       string // Instance name
	Home       string // Instance home directory
	ConfigDB   string // SQLite configuration store path
	SecretsKey string // Password encryption key, next to ConfigDB
	Logs       string // Logs directory
	LogFile    string // Default log file
}

// GetInstancePaths returns all paths for a given instance.
// Empty instance name defaults to "default".
func GetInstancePaths(instanceName string) InstancePaths {
	instanceName = strings.TrimSpace(instanceName)
	if instanceName == "" {
		instanceName = DefaultInstance
	}

	instanceDir := filepath.Join(GetHome(), "instances", instanceName)
	logs := filepath.Join(instanceDir, "logs")

	return InstancePaths{
		Name:       instanceName,
		Home:       instanceDir,
		ConfigDB:   filepath.Join(instanceDir, "config.db"),
		SecretsKey: filepath.Join(instanceDir, ".secrets.key"),
		Logs:       logs,
		LogFile:    filepath.Join(logs, "kvc.log"),
	}
}

// WithConfigDB returns a copy of p whose database, and the key file beside
// it, live at path.
func (p InstancePaths) WithConfigDB(path string) InstancePaths {
	path = ExpandPath(path)
	if path == "" {
		return p
	}
	p.ConfigDB = path
	p.SecretsKey = filepath.Join(filepath.Dir(path), ".secrets.key")
	return p
}

// GetHome returns the kvconsole home directory. KVCONSOLE_HOME wins over
// ~/.kvconsole.
func GetHome() string {
	if dir := strings.TrimSpace(os.Getenv(HomeEnv)); dir != "" {
		return ExpandPath(dir)
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".kvconsole")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureInstanceDirs creates the directory structure for paths if it does
// not exist. The instance home holds the key file and is private. Instance
// names that could escape the instances directory are rejected.
func EnsureInstanceDirs(paths InstancePaths) error {
	if !validate.Ident(paths.Name) {
		return fmt.Errorf("config: invalid instance name %q", paths.Name)
	}

	dirs := []struct {
		path string
		mode os.FileMode
	}{
		{paths.Home, 0o700},
		{filepath.Dir(paths.ConfigDB), 0o700},
		{paths.Logs, 0o755},
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir.path, dir.mode); err != nil {
			return err
		}
	}

	return nil
}
