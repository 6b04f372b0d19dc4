// Package credential resolves the ordered list of credentials that can be used
// to access the GitHub API for a repository.
package credential

import "fmt"

// Priorities of the credential variants, lower values are tried first.
const (
	PrioritySessionUserToken          = 1
	PriorityRepositoryAppInstallation = 2
	PriorityRepositoryOwnerToken      = 3
	PriorityEnvironmentFallbackToken  = 4
)

// Candidate is a credential that can be tried to authenticate at GitHub.
// The set of implementations is closed, it is implemented by
// SessionUserToken, RepositoryAppInstallation, RepositoryOwnerToken and
// EnvironmentFallbackToken.
type Candidate interface {
	Priority() int
	// Description returns a human-readable description, it never
	// contains secrets.
	Description() string

	candidate()
}

// SessionUserToken is the access token of the user that triggered the
// operation.
type SessionUserToken struct {
	UserID string
	Login  string
	Token  string
}

func (SessionUserToken) Priority() int { return PrioritySessionUserToken }

func (c SessionUserToken) Description() string {
	return fmt.Sprintf("session user token (%s)", c.Login)
}

func (SessionUserToken) candidate() {}

// RepositoryAppInstallation authenticates as the GitHub App installation the
// repository is bound to.
type RepositoryAppInstallation struct {
	InstallationID int64
}

func (RepositoryAppInstallation) Priority() int { return PriorityRepositoryAppInstallation }

func (c RepositoryAppInstallation) Description() string {
	return fmt.Sprintf("github app installation (%d)", c.InstallationID)
}

func (RepositoryAppInstallation) candidate() {}

// RepositoryOwnerToken is the access token of the user that registered the
// repository before app installations were supported.
type RepositoryOwnerToken struct {
	UserID string
	Login  string
	Token  string
}

func (RepositoryOwnerToken) Priority() int { return PriorityRepositoryOwnerToken }

func (c RepositoryOwnerToken) Description() string {
	return fmt.Sprintf("repository owner token (%s)", c.Login)
}

func (RepositoryOwnerToken) candidate() {}

// EnvironmentFallbackToken is the process wide access token from the
// configuration.
type EnvironmentFallbackToken struct {
	Token string
}

func (EnvironmentFallbackToken) Priority() int { return PriorityEnvironmentFallbackToken }

func (EnvironmentFallbackToken) Description() string {
	return "environment fallback token"
}

func (EnvironmentFallbackToken) candidate() {}
