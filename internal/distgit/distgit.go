// Package distgit manages working copies of Fedora dist-git repositories.
package distgit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/cmdexec"
	"github.com/osbuild/fedora-bot/internal/logfields"
)

var versionRe = regexp.MustCompile(`[0-9.]+`)

// DistGit clones dist-git repositories into a working directory.
type DistGit struct {
	runner  cmdexec.Runner
	baseURL string
	workDir string
	logger  *zap.Logger
}

func New(runner cmdexec.Runner, baseURL, workDir string) *DistGit {
	return &DistGit{
		runner:  runner,
		baseURL: baseURL,
		workDir: workDir,
		logger:  zap.L().Named("distgit"),
	}
}

// Clone clones the dist-git repository of component and returns its working
// copy. An existing clone is reused.
func (d *DistGit) Clone(ctx context.Context, component string) (*WorkingCopy, error) {
	dir := filepath.Join(d.workDir, component)

	if _, err := os.Stat(dir); err == nil {
		d.logger.Debug(
			"reusing existing clone",
			logfields.Component(component),
			logfields.Event("distgit_clone_reused"),
		)

		return d.newWorkingCopy(component, dir), nil
	}

	cloneURL := fmt.Sprintf("%s/rpms/%s.git", strings.TrimSuffix(d.baseURL, "/"), component)

	_, err := d.runner.Run(ctx, d.workDir, "git", "clone", cloneURL)
	if err != nil {
		return nil, fmt.Errorf("cloning %s failed: %w", cloneURL, err)
	}

	d.logger.Info(
		"cloned dist-git repository",
		logfields.Component(component),
		logfields.Event("distgit_cloned"),
		zap.String("url", cloneURL),
	)

	return d.newWorkingCopy(component, dir), nil
}

func (d *DistGit) newWorkingCopy(component, dir string) *WorkingCopy {
	return &WorkingCopy{
		runner:    d.runner,
		component: component,
		dir:       dir,
		logger:    d.logger.With(logfields.Component(component)),
	}
}

// WorkingCopy is a checked out dist-git repository of one component.
type WorkingCopy struct {
	runner    cmdexec.Runner
	component string
	dir       string
	logger    *zap.Logger
}

func (w *WorkingCopy) Dir() string {
	return w.dir
}

// Checkout switches the working copy to branch.
func (w *WorkingCopy) Checkout(ctx context.Context, branch string) error {
	_, err := w.runner.Run(ctx, w.dir, "git", "checkout", branch)
	if err != nil {
		return fmt.Errorf("checking out branch %s failed: %w", branch, err)
	}

	w.logger.Debug(
		"checked out branch",
		logfields.Event("distgit_branch_checked_out"),
		zap.String("branch", branch),
	)

	return nil
}

// LatestVersion scrapes the package version from the Version: line of the
// component's spec file on the current branch.
func (w *WorkingCopy) LatestVersion() (string, error) {
	path := filepath.Join(w.dir, w.component+".spec")

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading spec file failed: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "Version:") {
			continue
		}

		version := versionRe.FindString(line)
		if version == "" {
			return "", fmt.Errorf("could not extract version from spec file line %q", line)
		}

		return version, nil
	}

	return "", fmt.Errorf("spec file %s contains no Version: line", path)
}
