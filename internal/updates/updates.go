// Package updates detects Koji builds that have no published Bodhi update
// and publishes the missing updates.
package updates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/logfields"
)

const loggerName = "updates"

// BuildTracker looks up builds in the build system.
type BuildTracker interface {
	BuildCompleted(ctx context.Context, nvr string) (bool, error)
}

// UpdateTracker looks up published updates.
type UpdateTracker interface {
	UpdateExists(ctx context.Context, nvr string) (bool, error)
}

// WorkingCopy is a dist-git working copy of one component.
type WorkingCopy interface {
	Checkout(ctx context.Context, branch string) error
	LatestVersion() (string, error)
	Dir() string
}

// Cloner provides dist-git working copies.
type Cloner interface {
	Clone(ctx context.Context, component string) (WorkingCopy, error)
}

// Publisher submits an update for the currently checked out branch.
type Publisher interface {
	PublishUpdate(ctx context.Context, dir, component string) (string, error)
}

// Notifier sends fire-and-forget chat messages.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Manager detects and publishes missing updates for components.
type Manager struct {
	cloner    Cloner
	builds    BuildTracker
	updates   UpdateTracker
	publisher Publisher
	notifier  Notifier
	logger    *zap.Logger
}

func NewManager(cloner Cloner, builds BuildTracker, updates UpdateTracker, publisher Publisher, notifier Notifier) *Manager {
	return &Manager{
		cloner:    cloner,
		builds:    builds,
		updates:   updates,
		publisher: publisher,
		notifier:  notifier,
		logger:    zap.L().Named(loggerName),
	}
}

// Stat summarizes one missing-update detection run.
type Stat struct {
	Version   string
	Missing   []string
	Published uint
	Failures  uint
}

// Run detects releases of component that have a completed build but no
// published update and publishes the missing updates.
// releases are the active distribution releases to consider, rpmRelease is
// the release part of the NVR to look up.
// Failures on one release never abort processing of the others.
func (m *Manager) Run(ctx context.Context, component, rpmRelease string, releases []string) (*Stat, error) {
	logger := m.logger.With(logfields.Component(component))

	wc, err := m.cloner.Clone(ctx, component)
	if err != nil {
		return nil, fmt.Errorf("cloning dist-git repository failed: %w", err)
	}

	version, err := wc.LatestVersion()
	if err != nil {
		return nil, fmt.Errorf("determining latest version failed: %w", err)
	}

	logger = logger.With(logfields.Version(version))
	logger.Info(
		"checking active releases for missing updates",
		logfields.Event("update_detection_started"),
		zap.Strings("releases", releases),
	)

	stat := Stat{Version: version}

	for _, release := range releases {
		nvr := fmt.Sprintf("%s-%s-%s.fc%s", component, version, rpmRelease, release)
		logger := logger.With(logfields.Release(release), logfields.Build(nvr))

		completed, err := m.builds.BuildCompleted(ctx, nvr)
		if err != nil {
			stat.Failures++
			logger.Warn(
				"querying build failed",
				logfields.Event("koji_query_failed"),
				zap.Error(err),
			)

			continue
		}

		if !completed {
			logger.Warn(
				"no completed build for this release, packit is probably still building",
				logfields.Event("koji_build_not_completed"),
			)

			continue
		}

		exists, err := m.updates.UpdateExists(ctx, nvr)
		if err != nil {
			stat.Failures++
			logger.Warn(
				"querying update failed",
				logfields.Event("bodhi_query_failed"),
				zap.Error(err),
			)

			continue
		}

		if exists {
			logger.Debug(
				"update already published",
				logfields.Event("bodhi_update_exists"),
			)

			continue
		}

		logger.Info(
			"build has no published update",
			logfields.Event("bodhi_update_missing"),
		)

		stat.Missing = append(stat.Missing, release)
	}

	for _, release := range stat.Missing {
		if err := m.publish(ctx, wc, component, release); err != nil {
			stat.Failures++
			logger.Warn(
				"publishing update failed",
				logfields.Event("update_publishing_failed"),
				logfields.Release(release),
				zap.Error(err),
			)

			continue
		}

		stat.Published++
	}

	logger.Info(
		"missing update detection finished",
		logfields.Event("update_detection_finished"),
		zap.Strings("missing", stat.Missing),
		zap.Uint("published", stat.Published),
		zap.Uint("failures", stat.Failures),
	)

	return &stat, nil
}

func (m *Manager) publish(ctx context.Context, wc WorkingCopy, component, release string) error {
	if err := wc.Checkout(ctx, "f"+release); err != nil {
		return err
	}

	url, err := m.publisher.PublishUpdate(ctx, wc.Dir(), component)
	if err != nil {
		return err
	}

	m.logger.Info(
		"update published",
		logfields.Component(component),
		logfields.Release(release),
		logfields.Event("bodhi_update_published"),
		zap.String("update_url", url),
	)

	m.notifier.Notify(ctx, fmt.Sprintf(
		"<%s|Bodhi update published> for *%s* in *Fedora %s*. :meow_checkmark:\nThis means the *release for Fedora %s is complete*. :tada:",
		url, component, release, release,
	))

	return nil
}
