package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type runOutput struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, configFs afero.Fs, args ...string) runOutput {
	t.Helper()
	color.NoColor = true

	var stdout, stderr syncBuffer
	code := execute(configFs, append([]string{}, args...), strings.NewReader(""), &stdout, &stderr)
	return runOutput{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// withScripts puts a directory of shell scripts at the front of PATH.
func withScripts(t *testing.T, scripts map[string]string) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scripts {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestUsage(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	cases := map[string][]string{
		"no-args":   {},
		"two-args":  {"cat"},
		"five-args": {"cat", "cat", "out", "extra"},
	}

	for tn, args := range cases {
		t.Run(tn, func(t *testing.T) {
			marker := filepath.Join(t.TempDir(), "ran")
			withScripts(t, map[string]string{"touch-marker": "touch " + marker})
			args := append([]string{"touch-marker"}, args...)
			if tn == "no-args" {
				args = nil
			}

			out := run(t, afero.NewMemMapFs(), args...)

			assert.Equal(t, 1, out.code)
			assert.Empty(t, out.stdout)
			assert.NoFileExists(t, marker)
			g.Assert(t, tn, []byte(out.stderr))
		})
	}
}

func TestExecute_pipeline(t *testing.T) {
	withScripts(t, map[string]string{"say-hello": "printf hello"})
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, afero.NewMemMapFs(), "true", "say-hello", "cat", outFile)

	assert.Equal(t, 0, out.code)
	assert.Empty(t, out.stdout)
	assert.Empty(t, out.stderr)
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestExecute_gateFails(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, afero.NewMemMapFs(), "false", "true", "cat", outFile)

	assert.Equal(t, 1, out.code)
	assert.NoFileExists(t, outFile)
}

func TestExecute_exitCodes(t *testing.T) {
	withScripts(t, map[string]string{
		"exit-four": "exit 4",
		"exit-one":  "cat >/dev/null; exit 1",
	})
	outFile := filepath.Join(t.TempDir(), "out")

	assert.Equal(t, 4, run(t, afero.NewMemMapFs(), "exit-four", "true", "cat", outFile).code)
	assert.Equal(t, 5, run(t, afero.NewMemMapFs(), "true", "exit-four", "exit-one", outFile).code)
}

func TestExecute_missingProgram(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, afero.NewMemMapFs(), "true", "andpipe-no-such-program", "cat", outFile)

	assert.Equal(t, 1, out.code)
	assert.Contains(t, out.stderr, "exec andpipe-no-such-program: ")
}

func TestExecute_programNamesAreNotFlags(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, afero.NewMemMapFs(), "true", "-v", "cat", outFile)

	// "-v" is taken as the source program and fails to launch.
	assert.Equal(t, 1, out.code)
	assert.Contains(t, out.stderr, "exec -v: ")
	assert.NotContains(t, out.stderr, "stage started")
}

func TestExecute_outputFileError(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "missing", "out")

	out := run(t, afero.NewMemMapFs(), "true", "true", "cat", outFile)

	assert.Equal(t, 1, out.code)
	assert.True(t, strings.HasPrefix(out.stderr, "andpipe: open "+outFile), out.stderr)
}

func TestExecute_verbose(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, afero.NewMemMapFs(), "--verbose", "true", "true", "cat", outFile)

	assert.Equal(t, 0, out.code)
	assert.Equal(t, 3, strings.Count(out.stderr, "stage started"))
	assert.Contains(t, out.stderr, "pipeline finished")
}

func TestExecute_config(t *testing.T) {
	configFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(configFs, "/etc/andpipe/config.yaml", []byte("log:\n  level: info\noutput_mode: \"0600\"\n"), 0600))
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, configFs, "--config", "/etc/andpipe", "true", "true", "cat", outFile)

	assert.Equal(t, 0, out.code)
	assert.Contains(t, out.stderr, "pipeline finished")
	info, err := os.Stat(outFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestExecute_badConfig(t *testing.T) {
	configFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(configFs, "config.yaml", []byte("output_mode: rwx\n"), 0600))
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, configFs, "--config", ".", "true", "true", "cat", outFile)

	assert.Equal(t, 1, out.code)
	assert.True(t, strings.HasPrefix(out.stderr, "andpipe: invalid configuration"), out.stderr)
	assert.NoFileExists(t, outFile)
}

func TestExecute_ignoresWorkingDirConfig(t *testing.T) {
	configFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(configFs, "config.yaml", []byte("name: someotherproject\n"), 0600))
	withScripts(t, map[string]string{"say-hello": "printf hello"})
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, configFs, "true", "say-hello", "cat", outFile)

	assert.Equal(t, 0, out.code)
	assert.Empty(t, out.stderr)
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestExecute_missingConfig(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out")

	out := run(t, afero.NewMemMapFs(), "--config", "/etc/andpipe", "true", "true", "cat", outFile)

	assert.Equal(t, 1, out.code)
	assert.True(t, strings.HasPrefix(out.stderr, "andpipe: open "), out.stderr)
	assert.NoFileExists(t, outFile)
}
