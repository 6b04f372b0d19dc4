package orchestrator

import (
	"github.com/worlddriven/worlddriven/internal/scoring"
)

// Result is the outcome of processing a pull request.
type Result string

const (
	// ResultWaiting means the pull request was evaluated and its action
	// is not due yet.
	ResultWaiting   Result = "waiting"
	ResultMerged    Result = "merged"
	ResultClosed    Result = "closed"
	ResultNotMerged Result = "could not merge"
	ResultNotClosed Result = "could not close"
	// ResultSkipped means the pull request was not evaluated, because
	// its repository is not governed or it is a draft.
	ResultSkipped Result = "skipped"
	// ResultFailed means the pull request could not be evaluated or its
	// action failed.
	ResultFailed Result = "failed"
)

// PullRequestOutcome is the result of processing a single pull request.
type PullRequestOutcome struct {
	Owner      string         `json:"owner"`
	Repository string         `json:"repository"`
	Number     int            `json:"number"`
	Action     scoring.Action `json:"action,omitempty"`
	Result     Result         `json:"result"`
	// Errors contains the failures of the side effects (status, action,
	// comment), they are independent of each other.
	Errors []string `json:"errors,omitempty"`

	Snapshot *scoring.Snapshot `json:"-"`
}

func (o *PullRequestOutcome) addError(err error) {
	o.Errors = append(o.Errors, err.Error())
}

// Failed returns true if any step of the processing failed.
func (o *PullRequestOutcome) Failed() bool {
	return o.Result == ResultFailed || len(o.Errors) > 0
}

// RepositoryResult is the result of processing the pull requests of a
// repository.
type RepositoryResult struct {
	Name string `json:"name"`
	// Skipped is true if no credentials were available for the repository.
	Skipped      bool                  `json:"skipped,omitempty"`
	PullRequests []*PullRequestOutcome `json:"pull_requests"`
	Errors       []string              `json:"errors,omitempty"`
}

// SweepResult is the result of processing all open pull requests of all
// repositories.
type SweepResult struct {
	ID             string              `json:"id"`
	ProcessedCount int                 `json:"processed_count"`
	MergedCount    int                 `json:"merged_count"`
	ClosedCount    int                 `json:"closed_count"`
	ErrorCount     int                 `json:"error_count"`
	Repositories   []*RepositoryResult `json:"repositories"`
	Errors         []string            `json:"errors,omitempty"`
}

func (r *SweepResult) add(outcome *PullRequestOutcome) {
	r.ProcessedCount++

	switch outcome.Result {
	case ResultMerged:
		r.MergedCount++
	case ResultClosed:
		r.ClosedCount++
	}

	if outcome.Failed() {
		r.ErrorCount++
	}
}
