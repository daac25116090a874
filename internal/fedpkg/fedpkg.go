// Package fedpkg publishes Bodhi updates via the fedpkg command line client.
package fedpkg

import (
	"context"
	"fmt"
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
		logger: zap.L().Named("fedpkg"),
	}
}

// PublishUpdate submits an enhancement update for the branch that is
// currently checked out in the dist-git working copy at dir.
// It returns the URL of the published Bodhi update.
// A valid Kerberos ticket is expected in the environment.
func (c *Client) PublishUpdate(ctx context.Context, dir, component string) (string, error) {
	notes := fmt.Sprintf("Update %s to the latest version", component)

	out, err := c.runner.Run(ctx, dir, "fedpkg", "update", "--type", "enhancement", "--notes", notes)
	if err != nil {
		return "", err
	}

	if !strings.Contains(out, "update has been submitted") {
		return "", fmt.Errorf("fedpkg did not report a submitted update: %s", out)
	}

	url := extractUpdateURL(out)
	if url == "" {
		c.logger.Warn(
			"update was submitted but no bodhi url found in output",
			logfields.Component(component),
			logfields.Event("fedpkg_update_url_missing"),
		)
	}

	return url, nil
}

func extractUpdateURL(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "https://bodhi.fedoraproject.org") {
			return line
		}
	}

	return ""
}
