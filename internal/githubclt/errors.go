package githubclt

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/google/go-github/v59/github"
)

type failureClass int

const (
	// failureCredential errors are specific to the used credential, the
	// operation is retried with the next one.
	failureCredential failureClass = iota
	// failureBusiness errors are rejections of the operation itself,
	// another credential would get the same answer.
	failureBusiness
	// failureAbort errors stop processing, e.g. a cancelled context.
	failureAbort
)

var graphQLHTTPErrRegex = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func isBusinessStatusCode(code int) bool {
	switch code {
	case http.StatusMethodNotAllowed, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

// classify returns the HTTP status code of err, 0 if it has none, and how the
// dispatcher proceeds after it.
func classify(err error) (int, failureClass) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, failureAbort
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return statusCode(rateLimitErr.Response), failureCredential
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return statusCode(abuseErr.Response), failureCredential
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		code := statusCode(respErr.Response)
		if isBusinessStatusCode(code) {
			return code, failureBusiness
		}

		return code, failureCredential
	}

	if code := graphQLStatusCode(err); code != 0 {
		if isBusinessStatusCode(code) {
			return code, failureBusiness
		}

		return code, failureCredential
	}

	return 0, failureCredential
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}

	return resp.StatusCode
}

// graphQLStatusCode extracts the HTTP status code from an error returned by
// the githubv4 client, it returns 0 if the error does not contain one.
func graphQLStatusCode(err error) int {
	matches := graphQLHTTPErrRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	code, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0
	}

	return code
}

// IsNotFound returns true if err was caused by a github response with status
// code 404.
func IsNotFound(err error) bool {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return statusCode(respErr.Response) == http.StatusNotFound
	}

	return graphQLStatusCode(err) == http.StatusNotFound
}
