package lcu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrNoLockfile = errors.New("lockfile not found")

// Lockfile carries the connection parameters the League client writes to
// its install directory while it is running, as
// "name:pid:port:password:protocol".
type Lockfile struct {
	Name     string
	PID      int
	Port     int
	Password string
	Protocol string
}

func ParseLockfile(data string) (Lockfile, error) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 5)
	if len(parts) != 5 {
		return Lockfile{}, fmt.Errorf("lockfile: want 5 fields, got %d", len(parts))
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Lockfile{}, fmt.Errorf("lockfile: bad pid %q: %w", parts[1], err)
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil {
		return Lockfile{}, fmt.Errorf("lockfile: bad port %q: %w", parts[2], err)
	}
	if parts[3] == "" {
		return Lockfile{}, errors.New("lockfile: empty password")
	}
	return Lockfile{
		Name:     parts[0],
		PID:      pid,
		Port:     port,
		Password: parts[3],
		Protocol: parts[4],
	}, nil
}

// Discover reads the lockfile from the client install directory. A missing
// file means the client is not running yet.
func Discover(dir string) (Lockfile, error) {
	data, err := os.ReadFile(filepath.Join(dir, "lockfile"))
	if errors.Is(err, os.ErrNotExist) {
		return Lockfile{}, ErrNoLockfile
	}
	if err != nil {
		return Lockfile{}, fmt.Errorf("lockfile: %w", err)
	}
	return ParseLockfile(string(data))
}
