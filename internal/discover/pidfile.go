package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFile is the worker's liveness marker: a file holding the worker's
// process id, written next to its socket. The marker is advisory; a
// positive probe can still be followed by a failed connect.
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Write records the current process id. An existing regular file is
// replaced; a symlink at the path is refused.
func (p *PIDFile) Write() error {
	pid := os.Getpid()

	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			info, lerr := os.Lstat(p.path)
			if lerr == nil && info.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("PID file is a symlink (security risk)")
			}
			os.Remove(p.path)
			f, err = os.OpenFile(p.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
			if err != nil {
				return fmt.Errorf("failed to create PID file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to create PID file: %w", err)
		}
	}
	defer f.Close()

	_, err = f.WriteString(strconv.Itoa(pid))
	return err
}

// Read returns the recorded pid, or 0 when the marker is absent or empty.
// The file is read fresh on every call.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return 0, nil
	}

	pid, err := strconv.Atoi(content)
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID: %d (must be positive)", pid)
	}

	return pid, nil
}

// IsProcessAlive reports whether the recorded process currently exists.
// A missing or unparsable marker reports false.
func (p *PIDFile) IsProcessAlive() bool {
	pid, err := p.Read()
	if err != nil || pid == 0 {
		return false
	}

	return processExists(pid)
}

func (p *PIDFile) Remove() error {
	if info, err := os.Lstat(p.path); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to remove PID file: is a symlink")
		}
	}
	return os.Remove(p.path)
}

func (p *PIDFile) Path() string {
	return p.path
}

// Alive derives the marker path sitting next to socketPath and probes the
// process it names.
func Alive(socketPath, pidName string) bool {
	pidPath := filepath.Join(filepath.Dir(socketPath), pidName)
	return NewPIDFile(pidPath).IsProcessAlive()
}
