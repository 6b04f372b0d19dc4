package repoconfig

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/wderr"
)

const loggerName = "repoconfig"

// GithubClient defines the github operations required by the Loader.
type GithubClient interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
	// FileContent must return an error wrapping wderr.ErrNotFound if the
	// file does not exist.
	FileContent(ctx context.Context, owner, repo, ref, path string) ([]byte, error)
}

// Loader retrieves the configuration file of repositories.
type Loader struct {
	logger *zap.Logger
}

func NewLoader() *Loader {
	return &Loader{
		logger: zap.L().Named(loggerName),
	}
}

// Load returns the configuration of the repository.
// Load never fails, when the configuration can not be retrieved or parsed the
// defaults are returned.
func (l *Loader) Load(ctx context.Context, clt GithubClient, owner, repo string) Config {
	logger := l.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
	)

	branch, err := clt.DefaultBranch(ctx, owner, repo)
	if err != nil {
		logger.Warn(
			"retrieving default branch failed, using default configuration",
			logfields.Event("repoconfig_default_branch_failed"),
			zap.Error(err),
		)
		return Default()
	}

	data, err := clt.FileContent(ctx, owner, repo, branch, FileName)
	if err != nil {
		if errors.Is(err, wderr.ErrNotFound) {
			logger.Debug(
				"repository has no configuration file, using default configuration",
				logfields.Event("repoconfig_not_found"),
				logfields.Branch(branch),
			)
			return Default()
		}

		logger.Warn(
			"retrieving configuration file failed, using default configuration",
			logfields.Event("repoconfig_fetch_failed"),
			logfields.Branch(branch),
			zap.Error(err),
		)
		return Default()
	}

	cfg, invalidKeys, err := Parse(data)
	if err != nil {
		logger.Warn(
			"parsing configuration file failed, using default configuration",
			logfields.Event("repoconfig_parse_failed"),
			zap.Error(err),
		)
		return Default()
	}

	if len(invalidKeys) > 0 {
		logger.Info(
			"configuration file contains invalid values, using defaults for them",
			logfields.Event("repoconfig_invalid_values"),
			zap.Strings("keys", invalidKeys),
		)
	}

	logger.Debug(
		"repository configuration loaded",
		logfields.Event("repoconfig_loaded"),
		zap.Stringer("config", &cfg),
	)

	return cfg
}
