package distgit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type recordedCommand struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	commands []recordedCommand
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	f.commands = append(f.commands, recordedCommand{dir: dir, name: name, args: args})
	return "", nil
}

func TestCloneRunsGitClone(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	workDir := t.TempDir()
	runner := &fakeRunner{}

	d := New(runner, "https://src.fedoraproject.org", workDir)

	wc, err := d.Clone(context.Background(), "osbuild")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(workDir, "osbuild"), wc.Dir())
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "git", runner.commands[0].name)
	assert.Equal(t, []string{"clone", "https://src.fedoraproject.org/rpms/osbuild.git"}, runner.commands[0].args)
	assert.Equal(t, workDir, runner.commands[0].dir)
}

func TestCloneReusesExistingWorkingCopy(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	workDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(workDir, "osbuild"), 0o755))

	runner := &fakeRunner{}
	d := New(runner, "https://src.fedoraproject.org", workDir)

	_, err := d.Clone(context.Background(), "osbuild")
	require.NoError(t, err)
	assert.Empty(t, runner.commands)
}

func TestCheckout(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	workDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(workDir, "osbuild"), 0o755))

	runner := &fakeRunner{}
	d := New(runner, "https://src.fedoraproject.org", workDir)

	wc, err := d.Clone(context.Background(), "osbuild")
	require.NoError(t, err)

	require.NoError(t, wc.Checkout(context.Background(), "f40"))

	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"checkout", "f40"}, runner.commands[0].args)
	assert.Equal(t, wc.Dir(), runner.commands[0].dir)
}

func writeSpecFile(t *testing.T, dir, component, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, component+".spec"), []byte(content), 0o644))
}

func TestLatestVersion(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	workDir := t.TempDir()
	componentDir := filepath.Join(workDir, "osbuild")
	require.NoError(t, os.Mkdir(componentDir, 0o755))

	spec := strings.Join([]string{
		"Name:           osbuild",
		"Version:        89.2",
		"Release:        1%{?dist}",
	}, "\n")
	writeSpecFile(t, componentDir, "osbuild", spec)

	d := New(&fakeRunner{}, "https://src.fedoraproject.org", workDir)
	wc, err := d.Clone(context.Background(), "osbuild")
	require.NoError(t, err)

	version, err := wc.LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, "89.2", version)
}

func TestLatestVersionMissingVersionLine(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	workDir := t.TempDir()
	componentDir := filepath.Join(workDir, "osbuild")
	require.NoError(t, os.Mkdir(componentDir, 0o755))
	writeSpecFile(t, componentDir, "osbuild", "Name: osbuild\n")

	d := New(&fakeRunner{}, "https://src.fedoraproject.org", workDir)
	wc, err := d.Clone(context.Background(), "osbuild")
	require.NoError(t, err)

	_, err = wc.LatestVersion()
	require.Error(t, err)
}

func TestLatestVersionMissingSpecFile(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	workDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(workDir, "osbuild"), 0o755))

	d := New(&fakeRunner{}, "https://src.fedoraproject.org", workDir)
	wc, err := d.Clone(context.Background(), "osbuild")
	require.NoError(t, err)

	_, err = wc.LatestVersion()
	require.Error(t, err)
}
