package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/worlddriven/worlddriven/internal/repoconfig"
)

const (
	secondsPerHour = 3600
	secondsPerDay  = 86400
)

// maxScheduleSeconds is the largest number of seconds that can be
// represented as time.Duration.
const maxScheduleSeconds = float64(math.MaxInt64 / int64(time.Second))

const (
	ReviewStateApproved         = "APPROVED"
	ReviewStateChangesRequested = "CHANGES_REQUESTED"
)

// Input is the pull request data that the score is computed from.
type Input struct {
	Number    int
	Title     string
	Author    string
	HeadSHA   string
	CreatedAt time.Time

	// Contributors are the contributors of the base repository.
	Contributors []ContributorCommits
	Reviews      []Review
	Commits      []Commit
	// PushedAt are the times of the push events to the head branch.
	PushedAt []time.Time
	// ReadyForReviewAt is when the pull request was marked as ready for
	// review the last time, zero if never.
	ReadyForReviewAt time.Time
}

type ContributorCommits struct {
	Login   string
	Commits int
}

type Review struct {
	User        string
	State       string
	SubmittedAt time.Time
}

type Commit struct {
	AuthoredAt  time.Time
	CommittedAt time.Time
}

// Compute calculates the snapshot of a pull request at now.
func Compute(in *Input, cfg repoconfig.Config, now time.Time) *Snapshot {
	s := Snapshot{
		Number:                 in.Number,
		Title:                  in.Title,
		Author:                 in.Author,
		HeadSHA:                in.HeadSHA,
		CreatedAt:              in.CreatedAt,
		LatestCommitAt:         latestCommit(in.Commits),
		LatestPushAt:           latest(in.PushedAt...),
		LatestReadyForReviewAt: in.ReadyForReviewAt,
		CommitCount:            len(in.Commits),
		Config:                 cfg,
		ComputedAt:             now,
	}

	s.StartAt = latest(s.CreatedAt, s.LatestCommitAt, s.LatestPushAt, s.LatestReadyForReviewAt)

	reviewValues := reviewValues(in.Author, in.Reviews)

	s.Contributors = make([]Contributor, 0, len(in.Contributors))
	for _, c := range in.Contributors {
		value := reviewValues[strings.ToLower(c.Login)]

		s.Contributors = append(s.Contributors, Contributor{
			Name:         c.Login,
			CommitWeight: c.Commits,
			ReviewValue:  value,
		})

		s.VotesTotal += c.Commits
		s.Votes += c.Commits * value
	}

	if s.VotesTotal != 0 {
		s.Coefficient = float64(s.Votes) / float64(s.VotesTotal)
	}

	s.TotalMergeTime = clampSeconds((cfg.BaseMergeTimeInHours/24 + float64(s.CommitCount)*cfg.PerCommitTimeInHours/24) * secondsPerDay)
	s.TotalCloseTime = clampSeconds(cfg.BaseCloseTimeInHours * secondsPerHour)

	if s.VotesTotal != 0 {
		for i := range s.Contributors {
			s.Contributors[i].TimeValue = float64(s.Contributors[i].CommitWeight) / float64(s.VotesTotal) * s.TotalMergeTime
		}
	}

	if s.Coefficient >= 0 {
		s.Action = ActionMerge
		s.Duration = (1 - s.Coefficient) * s.TotalMergeTime
	} else {
		s.Action = ActionClose
		s.Duration = (1 + s.Coefficient) * s.TotalCloseTime
	}

	s.Age = now.Sub(s.StartAt).Seconds()
	s.Remaining = s.Duration - s.Age
	s.TargetAt = s.StartAt.Add(time.Duration(s.Duration * float64(time.Second)))

	return &s
}

// clampSeconds limits secs to [0, maxScheduleSeconds], NaN becomes 0.
func clampSeconds(secs float64) float64 {
	switch {
	case math.IsNaN(secs), secs < 0:
		return 0
	case secs > maxScheduleSeconds:
		return maxScheduleSeconds
	default:
		return secs
	}
}

// reviewValues returns the review value per lower-cased user login.
// The author has an implicit approval, the last approving or change
// requesting review of a user determines its value.
func reviewValues(author string, reviews []Review) map[string]int {
	result := map[string]int{}
	if author != "" {
		result[strings.ToLower(author)] = 1
	}

	sorted := make([]Review, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
	})

	for _, r := range sorted {
		switch r.State {
		case ReviewStateApproved:
			result[strings.ToLower(r.User)] = 1
		case ReviewStateChangesRequested:
			result[strings.ToLower(r.User)] = -1
		}
	}

	return result
}

func latestCommit(commits []Commit) time.Time {
	var result time.Time
	for _, c := range commits {
		result = latest(result, c.AuthoredAt, c.CommittedAt)
	}

	return result
}

func latest(ts ...time.Time) time.Time {
	var result time.Time
	for _, t := range ts {
		if t.After(result) {
			result = t
		}
	}

	return result
}
