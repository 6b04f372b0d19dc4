// Package store provides access to the repository and user records.
package store

import (
	"context"
	"fmt"

	"github.com/worlddriven/worlddriven/internal/wderr"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = wderr.ErrNotFound

// Repository is a GitHub repository governed by worlddriven.
type Repository struct {
	Owner string
	Name  string
	// InstallationID is the GitHub App installation that grants access
	// to the repository, it is 0 if the app is not installed.
	InstallationID int64
	// OwnerUserID references the User whose access token was
	// registered for the repository before GitHub App installations
	// were supported. It is empty when no such binding exists.
	OwnerUserID string
}

func (r *Repository) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// HasAppInstallation returns true if the repository is bound to a GitHub
// App installation.
func (r *Repository) HasAppInstallation() bool {
	return r.InstallationID > 0
}

// HasOwnerToken returns true if the repository has a legacy binding to the
// access token of a user.
func (r *Repository) HasOwnerToken() bool {
	return r.OwnerUserID != ""
}

// User is a GitHub user that authorized worlddriven.
type User struct {
	ID    string
	Login string
	// Token is the GitHub access token of the user.
	Token string
}

// Store provides read access to repository and user records.
type Store interface {
	FindRepositoryByOwnerRepo(ctx context.Context, owner, repo string) (*Repository, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	ListRepositories(ctx context.Context) ([]*Repository, error)
}
