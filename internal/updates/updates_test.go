package updates

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeWorkingCopy struct {
	version   string
	checkouts []string
}

func (f *fakeWorkingCopy) Checkout(_ context.Context, branch string) error {
	f.checkouts = append(f.checkouts, branch)
	return nil
}

func (f *fakeWorkingCopy) LatestVersion() (string, error) { return f.version, nil }
func (f *fakeWorkingCopy) Dir() string                    { return "/tmp/osbuild" }

type fakeCloner struct {
	wc  *fakeWorkingCopy
	err error
}

func (f *fakeCloner) Clone(context.Context, string) (WorkingCopy, error) {
	return f.wc, f.err
}

type fakeBuildTracker struct {
	completed map[string]bool
	err       error
}

func (f *fakeBuildTracker) BuildCompleted(_ context.Context, nvr string) (bool, error) {
	return f.completed[nvr], f.err
}

type fakeUpdateTracker struct {
	exists map[string]bool
}

func (f *fakeUpdateTracker) UpdateExists(_ context.Context, nvr string) (bool, error) {
	return f.exists[nvr], nil
}

type fakePublisher struct {
	published []string
	failFor   map[string]error
}

func (f *fakePublisher) PublishUpdate(_ context.Context, _, component string) (string, error) {
	if err := f.failFor[component]; err != nil {
		return "", err
	}

	f.published = append(f.published, component)
	return "https://bodhi.fedoraproject.org/updates/FEDORA-2023-abc", nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, message string) {
	f.messages = append(f.messages, message)
}

func newTestManager(t *testing.T, cloner Cloner, builds BuildTracker, updates UpdateTracker, publisher Publisher, notifier Notifier) *Manager {
	t.Helper()
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	return NewManager(cloner, builds, updates, publisher, notifier)
}

func TestRunPublishesMissingUpdates(t *testing.T) {
	wc := &fakeWorkingCopy{version: "89"}
	publisher := &fakePublisher{}
	notifier := &fakeNotifier{}

	mgr := newTestManager(t,
		&fakeCloner{wc: wc},
		&fakeBuildTracker{completed: map[string]bool{
			"osbuild-89-1.fc39": true,
			"osbuild-89-1.fc40": true,
		}},
		&fakeUpdateTracker{exists: map[string]bool{
			"osbuild-89-1.fc39": true,
		}},
		publisher,
		notifier,
	)

	stat, err := mgr.Run(context.Background(), "osbuild", "1", []string{"39", "40"})
	require.NoError(t, err)

	assert.Equal(t, []string{"40"}, stat.Missing)
	assert.Equal(t, uint(1), stat.Published)
	assert.Equal(t, []string{"f40"}, wc.checkouts)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Fedora 40")
}

func TestRunSkipsReleasesWithoutCompletedBuild(t *testing.T) {
	wc := &fakeWorkingCopy{version: "89"}
	publisher := &fakePublisher{}

	mgr := newTestManager(t,
		&fakeCloner{wc: wc},
		&fakeBuildTracker{completed: map[string]bool{}},
		&fakeUpdateTracker{},
		publisher,
		&fakeNotifier{},
	)

	stat, err := mgr.Run(context.Background(), "osbuild", "1", []string{"39", "40"})
	require.NoError(t, err)

	assert.Empty(t, stat.Missing)
	assert.Zero(t, stat.Published)
	assert.Zero(t, stat.Failures)
	assert.Empty(t, publisher.published)
}

func TestRunQueryFailureIsCountedNotFatal(t *testing.T) {
	wc := &fakeWorkingCopy{version: "89"}

	mgr := newTestManager(t,
		&fakeCloner{wc: wc},
		&fakeBuildTracker{err: errors.New("koji unreachable")},
		&fakeUpdateTracker{},
		&fakePublisher{},
		&fakeNotifier{},
	)

	stat, err := mgr.Run(context.Background(), "osbuild", "1", []string{"39", "40"})
	require.NoError(t, err)

	assert.Equal(t, uint(2), stat.Failures)
	assert.Empty(t, stat.Missing)
}

func TestRunCloneFailureIsFatal(t *testing.T) {
	mgr := newTestManager(t,
		&fakeCloner{err: errors.New("clone failed")},
		&fakeBuildTracker{},
		&fakeUpdateTracker{},
		&fakePublisher{},
		&fakeNotifier{},
	)

	_, err := mgr.Run(context.Background(), "osbuild", "1", []string{"39"})
	require.Error(t, err)
}

func TestRunPublishFailureDoesNotAbortSiblings(t *testing.T) {
	wc := &fakeWorkingCopy{version: "89"}
	notifier := &fakeNotifier{}

	failingPublisher := &publisherFailingOnce{}

	mgr := newTestManager(t,
		&fakeCloner{wc: wc},
		&fakeBuildTracker{completed: map[string]bool{
			"osbuild-89-1.fc39": true,
			"osbuild-89-1.fc40": true,
		}},
		&fakeUpdateTracker{},
		failingPublisher,
		notifier,
	)

	stat, err := mgr.Run(context.Background(), "osbuild", "1", []string{"39", "40"})
	require.NoError(t, err)

	assert.Equal(t, uint(1), stat.Published)
	assert.Equal(t, uint(1), stat.Failures)
	require.Len(t, notifier.messages, 1)
}

type publisherFailingOnce struct {
	calls int
}

func (p *publisherFailingOnce) PublishUpdate(context.Context, string, string) (string, error) {
	p.calls++
	if p.calls == 1 {
		return "", errors.New("fedpkg failed")
	}

	return "https://bodhi.fedoraproject.org/updates/FEDORA-2023-abc", nil
}
