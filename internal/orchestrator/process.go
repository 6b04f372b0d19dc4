package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/comment"
	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/repoconfig"
	"github.com/worlddriven/worlddriven/internal/scoring"
	"github.com/worlddriven/worlddriven/internal/wderr"
)

const (
	statusStateSuccess = "success"
	statusStateError   = "error"
)

// maxStatusDescriptionLen is the maximum length of a commit status
// description that github accepts.
const maxStatusDescriptionLen = 140

const (
	activityMerged = "merged"
	activityClosed = "closed"
)

// processPullRequest scores a pull request, sets its commit status, merges or
// closes it when the action is due and updates its tracking comment.
// The status, the action and the comment are processed independently, a
// failure of one does not prevent the others.
func (o *Orchestrator) processPullRequest(
	ctx context.Context,
	clt GithubClient,
	cfg repoconfig.Config,
	owner, repo string,
	number int,
	activity string,
) *PullRequestOutcome {
	logger := o.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
	)

	outcome := PullRequestOutcome{
		Owner:      owner,
		Repository: repo,
		Number:     number,
	}

	snapshot, err := o.scorer.Score(ctx, clt, owner, repo, number, cfg)
	if err != nil {
		logger.Warn(
			"scoring pull request failed",
			logfields.Event("pull_request_scoring_failed"),
			zap.Error(err),
		)

		outcome.Result = ResultFailed
		outcome.addError(fmt.Errorf("scoring failed: %w", err))
		metrics.ProcessedPullRequestInc(&outcome)

		return &outcome
	}

	outcome.Snapshot = snapshot
	outcome.Action = snapshot.Action
	outcome.Result = ResultWaiting

	logger = logger.With(
		zap.String("action", string(snapshot.Action)),
		zap.Float64("coefficient", snapshot.Coefficient),
		zap.Float64("remaining_seconds", snapshot.Remaining),
	)

	if err := o.setStatus(ctx, clt, owner, repo, snapshot); err != nil {
		logger.Warn(
			"setting commit status failed",
			logfields.Event("commit_status_update_failed"),
			zap.Error(err),
		)

		outcome.addError(fmt.Errorf("setting commit status failed: %w", err))
	}

	var terminalActivity string
	if snapshot.Due() {
		terminalActivity = o.runAction(ctx, logger, clt, cfg, owner, repo, snapshot, &outcome)
	}

	ref := comment.Ref{Owner: owner, Repo: repo, Number: number}
	if err := o.comments.Update(ctx, clt, ref, snapshot, joinActivities(activity, terminalActivity)); err != nil {
		logger.Warn(
			"updating tracking comment failed",
			logfields.Event("tracking_comment_update_failed"),
			zap.Error(err),
		)

		outcome.addError(fmt.Errorf("updating tracking comment failed: %w", err))
	}

	metrics.ProcessedPullRequestInc(&outcome)

	logger.Info(
		"pull request processed",
		logfields.Event("pull_request_processed"),
		zap.String("result", string(outcome.Result)),
		zap.Strings("errors", outcome.Errors),
	)

	return &outcome
}

// runAction merges or closes the pull request and returns the activity
// message for the tracking comment, it is empty if the action did not
// succeed.
func (o *Orchestrator) runAction(
	ctx context.Context,
	logger *zap.Logger,
	clt GithubClient,
	cfg repoconfig.Config,
	owner, repo string,
	snapshot *scoring.Snapshot,
	outcome *PullRequestOutcome,
) string {
	switch snapshot.Action {
	case scoring.ActionMerge:
		merged, err := clt.Merge(ctx, owner, repo, snapshot.Number, string(cfg.MergeMethod), mergeCommitTitle(snapshot))
		if err != nil {
			if wderr.IsBusinessRejection(err) {
				logger.Info(
					"github rejected merging the pull request",
					logfields.Event("pull_request_merge_rejected"),
					zap.Error(err),
				)

				outcome.Result = ResultNotMerged
				return ""
			}

			logger.Warn(
				"merging pull request failed",
				logfields.Event("pull_request_merge_failed"),
				zap.Error(err),
			)

			outcome.Result = ResultFailed
			outcome.addError(fmt.Errorf("merging failed: %w", err))
			return ""
		}

		if !merged {
			logger.Info(
				"pull request is not mergeable",
				logfields.Event("pull_request_not_mergeable"),
			)

			outcome.Result = ResultNotMerged
			return ""
		}

		logger.Info("pull request merged", logfields.Event("pull_request_merged"))
		outcome.Result = ResultMerged
		return activityMerged

	case scoring.ActionClose:
		err := clt.ClosePullRequest(ctx, owner, repo, snapshot.Number)
		if err != nil {
			if wderr.IsBusinessRejection(err) {
				logger.Info(
					"github rejected closing the pull request",
					logfields.Event("pull_request_close_rejected"),
					zap.Error(err),
				)

				outcome.Result = ResultNotClosed
				return ""
			}

			logger.Warn(
				"closing pull request failed",
				logfields.Event("pull_request_close_failed"),
				zap.Error(err),
			)

			outcome.Result = ResultFailed
			outcome.addError(fmt.Errorf("closing failed: %w", err))
			return ""
		}

		logger.Info("pull request closed", logfields.Event("pull_request_closed"))
		outcome.Result = ResultClosed
		return activityClosed

	default:
		outcome.Result = ResultFailed
		outcome.addError(fmt.Errorf("unsupported action %q", snapshot.Action))
		return ""
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, clt GithubClient, owner, repo string, snapshot *scoring.Snapshot) error {
	if snapshot.HeadSHA == "" {
		return errors.New("head commit of pull request is unknown")
	}

	status := github.RepoStatus{
		State:       github.String(statusState(snapshot)),
		Description: github.String(statusDescription(snapshot)),
		Context:     github.String(o.statusContext),
	}

	if o.dashboardURL != "" {
		status.TargetURL = github.String(o.pullRequestURL(owner, repo, snapshot.Number))
	}

	return clt.CreateStatus(ctx, owner, repo, snapshot.HeadSHA, &status)
}

func (o *Orchestrator) pullRequestURL(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s/%s/pull/%d", strings.TrimSuffix(o.dashboardURL, "/"), owner, repo, number)
}

func statusState(s *scoring.Snapshot) string {
	if s.Action == scoring.ActionClose {
		return statusStateError
	}

	return statusStateSuccess
}

func statusDescription(s *scoring.Snapshot) string {
	var desc string

	if s.Due() {
		desc = fmt.Sprintf("%s is due, coefficient %.2f", s.Action, s.Coefficient)
	} else {
		desc = fmt.Sprintf(
			"%s at %s, coefficient %.2f",
			s.Action, s.TargetAt.UTC().Format(time.RFC3339), s.Coefficient,
		)
	}

	if len(desc) > maxStatusDescriptionLen {
		return desc[:maxStatusDescriptionLen]
	}

	return desc
}

func mergeCommitTitle(s *scoring.Snapshot) string {
	if s.Title == "" {
		return ""
	}

	return fmt.Sprintf("%s (#%d)", s.Title, s.Number)
}

func joinActivities(activities ...string) string {
	nonEmpty := make([]string, 0, len(activities))
	for _, a := range activities {
		if a != "" {
			nonEmpty = append(nonEmpty, a)
		}
	}

	return strings.Join(nonEmpty, ", ")
}
