package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/provider"
)

var logFieldEventIgnored = logfields.Event("github_event_ignored")

// Run starts a sweep immediately and then periodically in the configured
// interval, and processes webhook events from the event channel.
// Run returns when ctx is cancelled or the event channel is closed, after all
// started sweeps finished.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info(
		"event loop started",
		zap.Duration("sweep_interval", o.sweepInterval),
	)

	defer o.wg.Wait()

	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()

	o.TriggerSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("event loop terminated, context cancelled")
			return

		case ev, open := <-o.events:
			if !open {
				o.logger.Info("event loop terminated, event channel closed")
				return
			}

			o.processEvent(ctx, ev)

		case <-ticker.C:
			o.TriggerSweep(ctx)
		}
	}
}

func (o *Orchestrator) processEvent(ctx context.Context, ev *provider.Event) {
	logger := o.logger.With(ev.LogFields()...)
	logger.Debug("event received", zap.Stringer("github.event", ev))

	metrics.ProcessedEventsInc()

	activity, ok := eventActivity(ev)
	if !ok {
		logger.Debug("event ignored", logFieldEventIgnored)
		return
	}

	if o.filter != nil {
		match, err := o.filter.Match(ctx, ev.JSON)
		if err != nil {
			logger.Warn(
				"evaluating event filter failed, ignoring event",
				logFieldEventIgnored,
				zap.Stringer("filter", o.filter),
				zap.Error(err),
			)
			return
		}

		if !match {
			logger.Debug("event does not match filter", logFieldEventIgnored)
			return
		}
	}

	o.RunForPullRequest(ctx, ev.RepositoryOwner, ev.Repository, ev.PullRequestNr, activity)
}

// eventActivity returns the activity log message for a webhook event.
// If the event does not require to re-evaluate a pull request false is
// returned.
func eventActivity(ev *provider.Event) (string, bool) {
	if ev.RepositoryOwner == "" || ev.Repository == "" || ev.PullRequestNr == 0 {
		return "", false
	}

	switch payload := ev.Payload.(type) {
	case *github.PullRequestEvent:
		if payload.GetPullRequest().GetState() != "open" {
			return "", false
		}

		switch payload.GetAction() {
		case "opened":
			return "pull request opened", true
		case "reopened":
			return "pull request reopened", true
		case "synchronize":
			return "new commits pushed", true
		case "ready_for_review":
			return "marked as ready for review", true
		case "edited":
			changes := payload.GetChanges()
			if changes == nil || changes.Base == nil {
				return "", false
			}

			return fmt.Sprintf("base branch changed to %s", payload.GetPullRequest().GetBase().GetRef()), true
		default:
			return "", false
		}

	case *github.PullRequestReviewEvent:
		if payload.GetPullRequest().GetState() != "open" {
			return "", false
		}

		reviewer := payload.GetReview().GetUser().GetLogin()
		switch payload.GetAction() {
		case "submitted":
			state := strings.ReplaceAll(strings.ToLower(payload.GetReview().GetState()), "_", " ")
			return fmt.Sprintf("review by %s: %s", reviewer, state), true
		case "dismissed":
			return fmt.Sprintf("review by %s dismissed", reviewer), true
		default:
			return "", false
		}

	default:
		return "", false
	}
}
