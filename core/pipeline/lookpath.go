package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

// DefaultPath is searched when PATH is unset or empty, like execvp does.
const DefaultPath = "/bin:/usr/bin"

func findExecutable(file string) error {
	d, err := os.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named by
// the PATH variable returned by getenv. If file contains a slash, it is tried
// directly and the PATH is not consulted. An empty PATH means DefaultPath.
//
// Unlike os/exec.LookPath, relative PATH entries are honoured the same way an
// interactive shell honours them.
func LookPath(getenv func(string) string, file string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(file)
		if err == nil {
			return file, nil
		}
		return "", err
	}
	path := getenv("PATH")
	if path == "" {
		path = DefaultPath
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if !strings.Contains(path, "/") {
			path = "./" + path
		}
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}
