package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/rpc"
)

var pageLimitPattern = regexp.MustCompile(`more than (\d+) blocks`)

// IsPageTooLargeError reports whether the indexer rejected a page for its size.
// The second value is the largest page the indexer accepts, or 0 if it did not say.
func IsPageTooLargeError(err error) (bool, int) {
	if err == nil {
		return false, 0
	}

	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return false, 0
	}

	matches := pageLimitPattern.FindStringSubmatch(fmt.Sprintf("%v", dataErr.ErrorData()))
	if len(matches) != 2 {
		return false, 0
	}

	limit, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return true, 0
	}

	return true, limit
}

// errorType labels err for the error counter.
func errorType(err error) string {
	var rpcErr rpc.Error
	var httpErr rpc.HTTPError

	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &httpErr):
		return "http_" + strconv.Itoa(httpErr.StatusCode)
	case errors.As(err, &rpcErr):
		return "rpc_" + strconv.Itoa(rpcErr.ErrorCode())
	case retryableError(err):
		return "transient"
	default:
		return "other"
	}
}
