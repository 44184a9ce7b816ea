package source

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data any
}

func (e dataError) Error() string  { return e.msg }
func (e dataError) ErrorCode() int { return -32005 }
func (e dataError) ErrorData() any { return e.data }

var _ rpc.DataError = dataError{}

func TestIsPageTooLargeError(t *testing.T) {
	ok, limit := IsPageTooLargeError(dataError{msg: "limit exceeded", data: "query returned more than 500 blocks"})
	require.True(t, ok)
	require.Equal(t, 500, limit)

	ok, _ = IsPageTooLargeError(dataError{msg: "limit exceeded", data: "something else"})
	require.False(t, ok)

	ok, _ = IsPageTooLargeError(errors.New("query returned more than 500 blocks"))
	require.False(t, ok)

	ok, _ = IsPageTooLargeError(nil)
	require.False(t, ok)
}

func TestErrorType(t *testing.T) {
	require.Equal(t, "http_503", errorType(rpc.HTTPError{StatusCode: 503}))
	require.Equal(t, "rpc_-32005", errorType(dataError{msg: "x"}))
	require.Equal(t, "other", errorType(errors.New("boom")))
}
