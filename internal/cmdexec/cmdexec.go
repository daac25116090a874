// Package cmdexec runs external packaging tools.
package cmdexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/logfields"
)

// Runner executes an external command in a working directory and returns
// its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (output string, err error)
}

// Exec runs commands via os/exec.
type Exec struct {
	logger *zap.Logger
}

func NewRunner() *Exec {
	return &Exec{logger: zap.L().Named("cmdexec")}
}

// Run executes the command and returns its combined stdout and stderr,
// stripped of surrounding whitespace.
// On a non-zero exit status the output so far is returned together with an
// error that contains it.
func (e *Exec) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	e.logger.Debug(
		"running command",
		logfields.Event("command_started"),
		zap.String("command", name),
		zap.Strings("args", args),
		zap.String("dir", dir),
	)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, output)
	}

	return output, nil
}
