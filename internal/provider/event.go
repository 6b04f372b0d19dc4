package provider

import (
	"fmt"

	"go.uber.org/zap"
)

// Event is a webhook event that was received from a provider.
type Event struct {
	JSON     []byte
	Provider string

	// Github hook fields, if the value is not available they are empty
	// strings.
	DeliveryID      string
	EventType       string
	Action          string
	RepositoryOwner string
	Repository      string
	CommitID        string
	Branch          string
	// PullRequestNr is 0 if it's not available
	PullRequestNr int
	// Payload is the parsed event, e.g. *github.PullRequestEvent
	Payload any
}

func (e *Event) String() string {
	return fmt.Sprintf("%s.%s (deliveryID: %s)", e.EventType, e.Action, e.DeliveryID)
}

func (e *Event) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 6) // cap == max. size of fields we append

	if e.DeliveryID != "" {
		fields = append(fields, zap.String("github.delivery_id", e.DeliveryID))
	}

	if e.RepositoryOwner != "" {
		fields = append(fields, zap.String("github.repository_owner", e.RepositoryOwner))
	}

	if e.Repository != "" {
		fields = append(fields, zap.String("git.repository", e.Repository))
	}

	if e.CommitID != "" {
		fields = append(fields, zap.String("git.commit", e.CommitID))
	}

	if e.Branch != "" {
		fields = append(fields, zap.String("git.branch", e.Branch))
	}

	if e.PullRequestNr != 0 {
		fields = append(fields, zap.Int("github.pull_request", e.PullRequestNr))
	}

	return fields
}
