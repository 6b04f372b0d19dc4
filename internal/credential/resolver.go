package credential

import (
	"context"

	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/store"
)

const loggerName = "credential_resolver"

// Store is the record lookup required by the Resolver.
type Store interface {
	FindRepositoryByOwnerRepo(ctx context.Context, owner, repo string) (*store.Repository, error)
	FindUserByID(ctx context.Context, id string) (*store.User, error)
}

// Request describes for whom and for which repository credentials are
// resolved.
type Request struct {
	// SessionUserID is the ID of the logged-in user that triggered the
	// operation, it is empty for timer and webhook triggered operations.
	SessionUserID string
	Owner         string
	Repository    string
	// Strict restricts the result to the session user token when it is
	// available, no other credential is used as fallback.
	Strict bool
}

// Resolver resolves credential candidates for repositories.
type Resolver struct {
	store    Store
	envToken string
	logger   *zap.Logger
}

type Option func(*Resolver)

// WithEnvironmentToken configures the process wide fallback token.
func WithEnvironmentToken(token string) Option {
	return func(r *Resolver) {
		r.envToken = token
	}
}

func NewResolver(s Store, opts ...Option) *Resolver {
	r := Resolver{store: s}

	for _, o := range opts {
		o(&r)
	}

	if r.logger == nil {
		r.logger = zap.L().Named(loggerName)
	}

	return &r
}

// Resolve returns the credential candidates for the request.
// Failing record lookups are logged and the affected candidates are skipped,
// they never cause Resolve to fail. An empty chain means that no credential
// is available.
func (r *Resolver) Resolve(ctx context.Context, req Request) *Chain {
	var result []Candidate

	logger := r.logger.With(
		logfields.RepositoryOwner(req.Owner),
		logfields.Repository(req.Repository),
	)

	if req.SessionUserID != "" {
		if cand := r.sessionCandidate(ctx, logger, req.SessionUserID); cand != nil {
			result = append(result, cand)

			if req.Strict {
				return newChain(result)
			}
		}
	}

	result = append(result, r.repositoryCandidates(ctx, logger, req)...)

	if r.envToken != "" {
		result = append(result, EnvironmentFallbackToken{Token: r.envToken})
	}

	chain := newChain(result)

	logger.Debug(
		"resolved credentials",
		logfields.Event("credentials_resolved"),
		zap.Stringer("credentials", chain),
	)

	return chain
}

func (r *Resolver) sessionCandidate(ctx context.Context, logger *zap.Logger, userID string) Candidate {
	user, err := r.store.FindUserByID(ctx, userID)
	if err != nil {
		logger.Warn(
			"looking up session user failed, skipping session credential",
			logfields.Event("credential_lookup_failed"),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}

	if user.Token == "" {
		logger.Debug(
			"session user has no access token",
			logfields.Event("credential_unavailable"),
			zap.String("user_id", userID),
		)
		return nil
	}

	return SessionUserToken{UserID: user.ID, Login: user.Login, Token: user.Token}
}

func (r *Resolver) repositoryCandidates(ctx context.Context, logger *zap.Logger, req Request) []Candidate {
	var result []Candidate

	repo, err := r.store.FindRepositoryByOwnerRepo(ctx, req.Owner, req.Repository)
	if err != nil {
		logger.Warn(
			"looking up repository failed, skipping repository credentials",
			logfields.Event("credential_lookup_failed"),
			zap.Error(err),
		)
		return nil
	}

	if repo.HasAppInstallation() {
		result = append(result, RepositoryAppInstallation{InstallationID: repo.InstallationID})
	}

	if repo.HasOwnerToken() && repo.OwnerUserID != req.SessionUserID {
		owner, err := r.store.FindUserByID(ctx, repo.OwnerUserID)
		if err != nil {
			logger.Warn(
				"looking up repository owner failed, skipping owner credential",
				logfields.Event("credential_lookup_failed"),
				zap.String("user_id", repo.OwnerUserID),
				zap.Error(err),
			)
			return result
		}

		if owner.Token != "" {
			result = append(result, RepositoryOwnerToken{UserID: owner.ID, Login: owner.Login, Token: owner.Token})
		}
	}

	return result
}
