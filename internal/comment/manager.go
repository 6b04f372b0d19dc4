// Package comment maintains the tracking comment of pull requests.
package comment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/keylock"
	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/scoring"
)

const loggerName = "comment"

// GithubClient defines the github operations required by the Manager.
type GithubClient interface {
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error)
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*github.IssueComment, error)
	UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) error
}

// Ref identifies a pull request.
type Ref struct {
	Owner  string
	Repo   string
	Number int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// Manager creates and updates the tracking comments of pull requests.
// Updates for the same pull request are serialized, updates for different
// pull requests run concurrently.
type Manager struct {
	locks  keylock.Map[Ref]
	logger *zap.Logger
	now    func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		logger: zap.L().Named(loggerName),
		now:    time.Now,
	}
}

// Update renders the snapshot into the tracking comment of the pull request.
// If activity is not empty it is appended to the activity log of the
// comment, otherwise the existing log is kept unchanged.
// The comment is created if it does not exist.
func (m *Manager) Update(ctx context.Context, clt GithubClient, ref Ref, snapshot *scoring.Snapshot, activity string) error {
	logger := m.logger.With(
		logfields.RepositoryOwner(ref.Owner),
		logfields.Repository(ref.Repo),
		logfields.PullRequest(ref.Number),
	)

	unlock, err := m.locks.Lock(ctx, ref)
	if err != nil {
		return fmt.Errorf("waiting for comment lock failed: %w", err)
	}
	defer unlock()

	comments, err := clt.ListIssueComments(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return fmt.Errorf("listing comments failed: %w", err)
	}

	existing := findTrackingComment(comments)

	var log []Entry
	if existing != nil {
		log = ParseLog(existing.GetBody())
	}

	if e := normalizeEntry(Entry{Time: m.now(), Message: activity}); e.Message != "" {
		log = append(log, e)
	}

	body := Render(snapshot, log)

	if existing == nil {
		c, err := clt.CreateIssueComment(ctx, ref.Owner, ref.Repo, ref.Number, body)
		if err != nil {
			return fmt.Errorf("creating comment failed: %w", err)
		}

		logger.Debug(
			"tracking comment created",
			logfields.Event("tracking_comment_created"),
			zap.Int64("github.comment_id", c.GetID()),
		)

		return nil
	}

	if existing.GetBody() == body {
		logger.Debug(
			"tracking comment is up to date",
			logfields.Event("tracking_comment_unchanged"),
			zap.Int64("github.comment_id", existing.GetID()),
		)
		return nil
	}

	if err := clt.UpdateIssueComment(ctx, ref.Owner, ref.Repo, existing.GetID(), body); err != nil {
		return fmt.Errorf("updating comment %d failed: %w", existing.GetID(), err)
	}

	logger.Debug(
		"tracking comment updated",
		logfields.Event("tracking_comment_updated"),
		zap.Int64("github.comment_id", existing.GetID()),
	)

	return nil
}

// findTrackingComment returns the first comment that starts with the Marker.
// Comments that only contain the marker, e.g. because they quote the
// tracking comment, are not tracking comments.
func findTrackingComment(comments []*github.IssueComment) *github.IssueComment {
	for _, c := range comments {
		if strings.HasPrefix(strings.TrimSpace(c.GetBody()), Marker) {
			return c
		}
	}

	return nil
}
