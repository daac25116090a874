// Package mergetrain evaluates and merges bot-authored pull requests.
//
// The merge train is run once per invocation per component. It lists all
// open pull requests created by the automation account, fetches the current
// CI flags for each of them and merges the ones whose flags satisfy the
// component's merge policy. Pull requests that are not ready are left open
// and re-evaluated on the next scheduled invocation, the train itself never
// waits for flags to appear.
package mergetrain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/logfields"
	"github.com/osbuild/fedora-bot/internal/pagureclt"
)

const loggerName = "mergetrain"

// ForgeClient is the subset of the Pagure API used by the merge train.
type ForgeClient interface {
	ListOpenPullRequests(ctx context.Context, component, author string) ([]*pagureclt.PullRequest, error)
	PullRequestFlags(ctx context.Context, component string, prNumber int) ([]*pagureclt.Flag, error)
	MergePullRequest(ctx context.Context, component string, prNumber int) error
}

// Retryer is an interface for running ForgeClient methods repeatedly when
// they fail with a temporary error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
}

// Component holds the per-component merge settings.
type Component struct {
	Name   string
	Policy Policy
	// Filter is optional, when nil only the author of a pull request is
	// checked.
	Filter *PRFilter
}

// Train merges eligible bot-authored pull requests of components.
// Pull requests are processed strictly sequentially, a failure on one pull
// request never prevents evaluation of its siblings.
type Train struct {
	clt       ForgeClient
	retryer   Retryer
	botAuthor string
	logger    *zap.Logger
}

func New(clt ForgeClient, retryer Retryer, botAuthor string) *Train {
	return &Train{
		clt:       clt,
		retryer:   retryer,
		botAuthor: botAuthor,
		logger:    zap.L().Named(loggerName),
	}
}

// Run evaluates all open bot-authored pull requests of the component and
// merges the approved ones.
//
// Transient failures on a single pull request are logged and counted, the
// pull request stays open for the next scheduled run. A data contract
// violation (pagureclt.ErrUnexpectedResponse) aborts the run with an error,
// continuing on mis-parsed data could merge a pull request that must not be
// merged.
func (t *Train) Run(ctx context.Context, comp *Component) (*RunStat, error) {
	stat := RunStat{StartTime: time.Now()}
	defer func() { stat.EndTime = time.Now() }()

	logger := t.logger.With(
		logfields.Component(comp.Name),
		logfields.Author(t.botAuthor),
	)

	var prs []*pagureclt.PullRequest
	err := t.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		prs, err = t.clt.ListOpenPullRequests(ctx, comp.Name, t.botAuthor)
		return err
	}, []zap.Field{logfields.Component(comp.Name), logfields.Event("pagure_list_prs")})
	if err != nil {
		return &stat, fmt.Errorf("listing open pull requests failed: %w", err)
	}

	if len(prs) == 0 {
		logger.Info(
			"no open pull requests",
			logfields.Event("merge_train_nothing_to_do"),
		)

		return &stat, nil
	}

	logger.Info(
		"starting merge train",
		logfields.Event("merge_train_started"),
		zap.Int("open_pull_requests", len(prs)),
	)

	for _, pr := range prs {
		stat.Seen++

		// redefine variable, to make PR fields scoped to this iteration
		logger := logger.With(logfields.PullRequest(pr.Number))

		if !t.admit(ctx, comp, pr, &stat, logger) {
			continue
		}

		flags, err := t.fetchFlags(ctx, comp.Name, pr.Number)
		if err != nil {
			if errors.Is(err, pagureclt.ErrUnexpectedResponse) {
				return &stat, fmt.Errorf("fetching flags for pull request %d failed: %w", pr.Number, err)
			}

			stat.Failures++
			logger.Warn(
				"fetching flags failed, evaluation deferred to next run",
				logfields.Event("merge_train_fetch_flags_failed"),
				zap.Error(err),
			)

			continue
		}

		decision := Decide(flags, comp.Policy)
		metrics.EvaluationsInc(comp.Name, decision)

		switch decision {
		case Approved:
			t.merge(ctx, comp.Name, pr.Number, &stat, logger)

		case Rejected:
			stat.Rejected++
			logger.Info(
				"pull request has failed flags, not merging",
				logfields.Event("merge_train_pr_rejected"),
				zap.Int("flag_count", len(flags)),
			)

		case NotReady:
			stat.NotReady++
			logger.Info(
				"not all flags have been reported yet, trying again on the next run",
				logfields.Event("merge_train_pr_not_ready"),
				zap.Int("flag_count", len(flags)),
			)
		}
	}

	logger.Info("merge train finished", stat.LogFields()...)

	return &stat, nil
}

// admit reports whether the pull request is considered by the merge train.
// Pull requests of other authors and pull requests not matching the
// component's filter query are skipped.
func (t *Train) admit(ctx context.Context, comp *Component, pr *pagureclt.PullRequest, stat *RunStat, logger *zap.Logger) bool {
	if pr.Author != t.botAuthor {
		stat.Filtered++
		logger.Debug(
			"skipping pull request of foreign author",
			logfields.Event("merge_train_pr_filtered"),
			zap.String("pr_author", pr.Author),
		)

		return false
	}

	if comp.Filter == nil {
		return true
	}

	match, err := comp.Filter.Match(ctx, pr.JSON)
	if err != nil {
		stat.Failures++
		logger.Warn(
			"evaluating pull request filter query failed, skipping pull request",
			logfields.Event("merge_train_filter_failed"),
			zap.Error(err),
		)

		return false
	}

	if !match {
		stat.Filtered++
		logger.Debug(
			"pull request does not match filter query",
			logfields.Event("merge_train_pr_filtered"),
		)
	}

	return match
}

func (t *Train) fetchFlags(ctx context.Context, component string, prNumber int) ([]*pagureclt.Flag, error) {
	var flags []*pagureclt.Flag

	err := t.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		flags, err = t.clt.PullRequestFlags(ctx, component, prNumber)
		return err
	}, []zap.Field{
		logfields.Component(component),
		logfields.PullRequest(prNumber),
		logfields.Event("pagure_fetch_flags"),
	})

	return flags, err
}

// merge merges an approved pull request.
// Merging is idempotent, a pull request that was merged by somebody else in
// the meantime is a non-fatal, recognized outcome.
func (t *Train) merge(ctx context.Context, component string, prNumber int, stat *RunStat, logger *zap.Logger) {
	err := t.retryer.Run(ctx, func(ctx context.Context) error {
		return t.clt.MergePullRequest(ctx, component, prNumber)
	}, []zap.Field{
		logfields.Component(component),
		logfields.PullRequest(prNumber),
		logfields.Event("pagure_merge_pr"),
	})
	if err != nil {
		if errors.Is(err, pagureclt.ErrAlreadyMerged) {
			stat.AlreadyMerged++
			logger.Info(
				"pull request was already merged",
				logfields.Event("merge_train_pr_already_merged"),
			)

			return
		}

		stat.Failures++
		metrics.MergeFailuresInc(component)
		logger.Warn(
			"merging pull request failed, it stays open for the next run",
			logfields.Event("merge_train_merge_failed"),
			zap.Error(err),
		)

		return
	}

	stat.Merged++
	metrics.MergesInc(component)
	logger.Info(
		"all flags passed, pull request merged",
		logfields.Event("merge_train_pr_merged"),
	)
}
