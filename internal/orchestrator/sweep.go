package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/store"
	"github.com/worlddriven/worlddriven/internal/wderr"
)

// RunFullSweep processes all open pull requests of all repositories
// sequentially.
// Failures are recorded in the result, they never abort the sweep. Only a
// cancellation of ctx stops it early.
func (o *Orchestrator) RunFullSweep(ctx context.Context) *SweepResult {
	result := SweepResult{ID: uuid.NewString()}
	logger := o.logger.With(logfields.SweepID(result.ID))
	startTime := time.Now()

	logger.Info("sweep started", logfields.Event("sweep_started"))

	repos, err := o.repos.ListRepositories(ctx)
	if err != nil {
		logger.Error(
			"sweep failed, listing repositories failed",
			logfields.Event("sweep_list_repositories_failed"),
			zap.Error(err),
		)

		result.ErrorCount++
		result.Errors = append(result.Errors, fmt.Sprintf("listing repositories failed: %s", err))
		o.finishSweep(&result, startTime)

		return &result
	}

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			logger.Info(
				"sweep aborted",
				logfields.Event("sweep_aborted"),
				zap.Error(err),
			)

			result.Errors = append(result.Errors, fmt.Sprintf("sweep aborted: %s", err))
			break
		}

		result.Repositories = append(result.Repositories, o.processRepository(ctx, logger, repo, &result))
	}

	o.finishSweep(&result, startTime)

	logger.Info(
		"sweep finished",
		logfields.Event("sweep_finished"),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("merged", result.MergedCount),
		zap.Int("closed", result.ClosedCount),
		zap.Int("errors", result.ErrorCount),
		zap.Duration("duration", time.Since(startTime)),
	)

	return &result
}

func (o *Orchestrator) finishSweep(result *SweepResult, startTime time.Time) {
	metrics.SweepFinished(result, time.Since(startTime))

	o.lastSweepMu.Lock()
	o.lastSweep = result
	o.lastSweepMu.Unlock()
}

func (o *Orchestrator) processRepository(ctx context.Context, logger *zap.Logger, repo *store.Repository, sweep *SweepResult) *RepositoryResult {
	result := RepositoryResult{Name: repo.String()}

	logger = logger.With(
		logfields.RepositoryOwner(repo.Owner),
		logfields.Repository(repo.Name),
	)

	clt, err := o.clients.ForRepository(ctx, repo.Owner, repo.Name)
	if err != nil {
		if errors.Is(err, wderr.ErrCredentialUnavailable) {
			logger.Info(
				"skipping repository, no credentials available",
				logfields.Event("repository_skipped_no_credentials"),
			)

			result.Skipped = true
			return &result
		}

		logger.Warn(
			"creating github client failed",
			logfields.Event("github_client_creation_failed"),
			zap.Error(err),
		)

		sweep.ErrorCount++
		result.Errors = append(result.Errors, err.Error())

		return &result
	}

	prs, err := clt.ListPullRequests(ctx, repo.Owner, repo.Name)
	if err != nil {
		logger.Warn(
			"listing pull requests failed",
			logfields.Event("list_pull_requests_failed"),
			zap.Error(err),
		)

		sweep.ErrorCount++
		result.Errors = append(result.Errors, fmt.Sprintf("listing pull requests failed: %s", err))

		return &result
	}

	if len(prs) == 0 {
		return &result
	}

	cfg := o.cfgLoader.Load(ctx, clt, repo.Owner, repo.Name)

	for _, pr := range prs {
		if ctx.Err() != nil {
			break
		}

		if pr.GetDraft() {
			logger.Debug(
				"skipping draft pull request",
				logfields.Event("draft_pull_request_skipped"),
				logfields.PullRequest(pr.GetNumber()),
			)

			result.PullRequests = append(result.PullRequests, &PullRequestOutcome{
				Owner:      repo.Owner,
				Repository: repo.Name,
				Number:     pr.GetNumber(),
				Result:     ResultSkipped,
			})
			continue
		}

		outcome := o.processPullRequest(ctx, clt, cfg, repo.Owner, repo.Name, pr.GetNumber(), "")
		result.PullRequests = append(result.PullRequests, outcome)
		sweep.add(outcome)
	}

	return &result
}

// RunForPullRequest processes a single pull request.
// activity is added to the activity log of the tracking comment, it can be
// empty.
func (o *Orchestrator) RunForPullRequest(ctx context.Context, owner, repo string, number int, activity string) *PullRequestOutcome {
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

	if _, err := o.repos.FindRepositoryByOwnerRepo(ctx, owner, repo); err != nil {
		if errors.Is(err, wderr.ErrNotFound) {
			logger.Debug(
				"ignoring pull request, repository is not governed",
				logfields.Event("repository_not_governed"),
			)

			outcome.Result = ResultSkipped
			return &outcome
		}

		outcome.Result = ResultFailed
		outcome.addError(fmt.Errorf("looking up repository failed: %w", err))
		return &outcome
	}

	clt, err := o.clients.ForRepository(ctx, owner, repo)
	if err != nil {
		if errors.Is(err, wderr.ErrCredentialUnavailable) {
			logger.Info(
				"skipping pull request, no credentials available",
				logfields.Event("repository_skipped_no_credentials"),
			)

			outcome.Result = ResultSkipped
			return &outcome
		}

		outcome.Result = ResultFailed
		outcome.addError(err)
		return &outcome
	}

	cfg := o.cfgLoader.Load(ctx, clt, owner, repo)

	return o.processPullRequest(ctx, clt, cfg, owner, repo, number, activity)
}

// TriggerSweep starts a sweep in a new go-routine.
// If a sweep is already running no new one is started and false is
// returned.
func (o *Orchestrator) TriggerSweep(ctx context.Context) bool {
	if !o.sweepRunning.CompareAndSwap(false, true) {
		o.logger.Info(
			"sweep already running, skipping trigger",
			logfields.Event("sweep_skipped"),
		)
		return false
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.sweepRunning.Store(false)

		o.RunFullSweep(ctx)
	}()

	return true
}

// LastSweep returns the result of the last finished sweep, nil if none
// finished yet.
func (o *Orchestrator) LastSweep() *SweepResult {
	o.lastSweepMu.Lock()
	defer o.lastSweepMu.Unlock()

	return o.lastSweep
}

// Wait blocks until all sweeps that were started by TriggerSweep finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
