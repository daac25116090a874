package pagureclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/osbuild/fedora-bot/internal/boterr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clt, err := New(srv.URL, "")
	require.NoError(t, err)

	return clt
}

func TestListOpenPullRequests(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/0/rpms/osbuild/pull-requests", r.URL.Path)
		assert.Equal(t, "packit", r.URL.Query().Get("author"))
		assert.Equal(t, "Open", r.URL.Query().Get("status"))

		fmt.Fprint(w, `{
			"total_requests": 2,
			"requests": [
				{"id": 12, "title": "Update to 89", "user": {"name": "packit"}},
				{"id": 14, "title": "Update to 90", "user": {"name": "packit"}}
			]
		}`)
	})

	prs, err := clt.ListOpenPullRequests(context.Background(), "osbuild", "packit")
	require.NoError(t, err)

	require.Len(t, prs, 2)
	assert.Equal(t, 12, prs[0].Number)
	assert.Equal(t, "packit", prs[0].Author)
	assert.Equal(t, "Update to 89", prs[0].Title)
	assert.NotEmpty(t, prs[0].JSON)
}

func TestListOpenPullRequestsMissingTotalIsContractViolation(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"requests": []}`)
	})

	_, err := clt.ListOpenPullRequests(context.Background(), "osbuild", "packit")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestPullRequestFlags(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/0/rpms/osbuild/pull-request/12/flag", r.URL.Path)

		fmt.Fprint(w, `{
			"flags": [
				{"username": "Zuul", "status": "success", "url": "https://ci.example/1"},
				{"username": "scratch-build", "status": "pending", "url": "https://ci.example/2"}
			]
		}`)
	})

	flags, err := clt.PullRequestFlags(context.Background(), "osbuild", 12)
	require.NoError(t, err)

	require.Len(t, flags, 2)
	assert.Equal(t, "Zuul", flags[0].Name)
	assert.Equal(t, FlagStatusSuccess, flags[0].Status)
	assert.Equal(t, FlagStatusPending, flags[1].Status)
}

func TestPullRequestFlagsUnknownStatusIsContractViolation(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"flags": [{"username": "Zuul", "status": "canceled"}]}`)
	})

	_, err := clt.PullRequestFlags(context.Background(), "osbuild", 12)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestPullRequestFlagsMissingFieldIsContractViolation(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"total_flags": 0}`)
	})

	_, err := clt.PullRequestFlags(context.Background(), "osbuild", 12)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestMergePullRequest(t *testing.T) {
	var merged int

	clt := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/0/rpms/osbuild/pull-request/12/merge", r.URL.Path)
		merged++

		fmt.Fprint(w, `{"message": "Changes merged!"}`)
	})

	err := clt.MergePullRequest(context.Background(), "osbuild", 12)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)
}

func TestMergeAlreadyMergedPullRequest(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "This pull-request was merged or closed", "error_code": "ENOCODE"}`)
	})

	err := clt.MergePullRequest(context.Background(), "osbuild", 12)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyMerged)
}

func TestServerErrorsAreRetryable(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := clt.ListOpenPullRequests(context.Background(), "osbuild", "packit")
	require.Error(t, err)

	var retryableErr *boterr.RetryableError
	assert.ErrorAs(t, err, &retryableErr)

	_, err = clt.PullRequestFlags(context.Background(), "osbuild", 12)
	require.Error(t, err)
	assert.ErrorAs(t, err, &retryableErr)

	err = clt.MergePullRequest(context.Background(), "osbuild", 12)
	require.Error(t, err)
	assert.ErrorAs(t, err, &retryableErr)
}

func TestRateLimitResponseIsRetryableWithResetTime(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := clt.ListOpenPullRequests(context.Background(), "osbuild", "packit")
	require.Error(t, err)

	var retryableErr *boterr.RetryableError
	require.ErrorAs(t, err, &retryableErr)
	assert.False(t, retryableErr.After.IsZero())
}

func TestClientErrorsAreNotRetryable(t *testing.T) {
	clt := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": "Project not found"}`)
	})

	_, err := clt.ListOpenPullRequests(context.Background(), "osbuild", "packit")
	require.Error(t, err)

	var retryableErr *boterr.RetryableError
	assert.False(t, errors.As(err, &retryableErr))
}
