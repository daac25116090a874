// Package koji queries the Koji build system via its command line client.
package koji

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/cmdexec"
	"github.com/osbuild/fedora-bot/internal/logfields"
)

type Client struct {
	runner cmdexec.Runner
	logger *zap.Logger
}

func New(runner cmdexec.Runner) *Client {
	return &Client{
		runner: runner,
		logger: zap.L().Named("koji"),
	}
}

// BuildCompleted returns true when a build with the given NVR
// (name-version-release) exists and is in COMPLETE state.
// A missing build is not an error, packit might still be building it.
func (c *Client) BuildCompleted(ctx context.Context, nvr string) (bool, error) {
	out, err := c.runner.Run(ctx, "", "koji", "buildinfo", nvr)
	if err != nil {
		if strings.Contains(out, "No such build") {
			c.logger.Debug(
				"build does not exist",
				logfields.Build(nvr),
				logfields.Event("koji_build_missing"),
			)

			return false, nil
		}

		return false, err
	}

	return strings.Contains(out, "State: COMPLETE"), nil
}
