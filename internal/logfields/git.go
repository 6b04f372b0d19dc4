package logfields

import "go.uber.org/zap"

func PullRequest(val int) zap.Field {
	return zap.Int("github.pull_request", val)
}

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func RepositoryOwner(val string) zap.Field {
	return zap.String("github.repository_owner", val)
}

func Branch(val string) zap.Field {
	return zap.String("git.branch", val)
}

func Commit(val string) zap.Field {
	return zap.String("git.commit", val)
}

func Operation(val string) zap.Field {
	return zap.String("github.operation", val)
}

// Credential is the human-readable description of a credential candidate,
// it never contains secrets.
func Credential(val string) zap.Field {
	return zap.String("github.credential", val)
}

func HTTPStatus(val int) zap.Field {
	return zap.Int("http.status_code", val)
}
