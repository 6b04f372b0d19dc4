// Package scoring computes when a pull request is merged or closed, based on
// the weighted reviews of the repository contributors.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/worlddriven/worlddriven/internal/repoconfig"
)

type Action string

const (
	ActionMerge Action = "merge"
	ActionClose Action = "close"
)

// Contributor is a contributor of the base repository and its vote on the
// pull request.
type Contributor struct {
	Name string
	// CommitWeight is the number of commits of the contributor in the
	// base repository.
	CommitWeight int
	// ReviewValue is 1 for an approval, -1 for requested changes and 0
	// if the contributor did not review.
	ReviewValue int
	// TimeValue is the share of the total merge time in seconds that is
	// attributed to the contributor.
	TimeValue float64
}

// Snapshot is the scoring result of a pull request at a point in time.
// All durations are in seconds.
type Snapshot struct {
	Number  int
	Title   string
	Author  string
	HeadSHA string

	Contributors []Contributor
	VotesTotal   int
	Votes        int
	// Coefficient is Votes/VotesTotal, 0 if VotesTotal is 0.
	Coefficient float64

	CreatedAt              time.Time
	LatestCommitAt         time.Time
	LatestPushAt           time.Time
	LatestReadyForReviewAt time.Time
	// StartAt is the latest of the start date signals.
	StartAt time.Time

	CommitCount    int
	TotalMergeTime float64
	TotalCloseTime float64

	Action Action
	// Duration is the merge duration if Action is ActionMerge, otherwise
	// the close duration.
	Duration float64
	// TargetAt is StartAt + Duration.
	TargetAt time.Time
	// Age is the time between StartAt and the computation.
	Age float64
	// Remaining is Duration - Age, a negative value means Action is due.
	Remaining float64

	Config     repoconfig.Config
	ComputedAt time.Time
}

// Due returns true if the time for the action has passed.
func (s *Snapshot) Due() bool {
	return s.Remaining < 0
}

func (s *Snapshot) String() string {
	return fmt.Sprintf(
		"action: %s, coefficient: %.3f, votes: %d/%d, remaining: %s",
		s.Action, s.Coefficient, s.Votes, s.VotesTotal, Seconds(s.Remaining),
	)
}

// Seconds converts a duration in seconds to a time.Duration, truncated to
// seconds. Values outside of the time.Duration range are saturated.
func Seconds(secs float64) time.Duration {
	switch {
	case math.IsNaN(secs):
		return 0
	case secs >= maxScheduleSeconds:
		return time.Duration(maxScheduleSeconds) * time.Second
	case secs <= -maxScheduleSeconds:
		return -time.Duration(maxScheduleSeconds) * time.Second
	default:
		return time.Duration(secs) * time.Second
	}
}
