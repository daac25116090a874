// Package pagureclt provides a client for the Pagure dist-git API.
package pagureclt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/osbuild/fedora-bot/internal/boterr"
	"github.com/osbuild/fedora-bot/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "pagure_client"

// ErrUnexpectedResponse is wrapped by errors that are returned when the API
// answered with a response that violates the expected data contract.
// Callers must treat it as fatal, continuing on a mis-parsed response could
// lead to a wrong merge decision.
var ErrUnexpectedResponse = errors.New("unexpected pagure API response")

// ErrAlreadyMerged is wrapped by the error that MergePullRequest returns
// when the pull request was merged or closed before. Merging is idempotent,
// callers can treat it as a successful no-op.
var ErrAlreadyMerged = errors.New("pull request is already merged or closed")

// New returns a new Pagure API client.
func New(baseURL, apiToken string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url failed: %w", err)
	}

	return &Client{
		baseURL:    u,
		httpClient: newHTTPClient(apiToken),
		logger:     zap.L().Named(loggerName),
	}, nil
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	// Pagure expects "Authorization: token <key>", the non-standard
	// token type is passed through verbatim by the oauth2 transport.
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken, TokenType: "token"},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is a Pagure API client.
// All methods return a boterr.RetryableError when an operation can be
// retried, e.g. on 5xx responses or transport failures.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

// FlagStatus is the reported state of a CI flag on a pull request.
type FlagStatus string

const (
	FlagStatusSuccess FlagStatus = "success"
	FlagStatusPending FlagStatus = "pending"
	FlagStatusFailure FlagStatus = "failure"
)

// Flag is a CI result attached to a pull request.
type Flag struct {
	Name   string
	Status FlagStatus
	URL    string
}

// PullRequest is an open pull request of a component.
// JSON contains the raw API representation, it is used for evaluating
// configurable filter queries.
type PullRequest struct {
	Number int
	Author string
	Title  string
	JSON   json.RawMessage
}

type prListResponse struct {
	TotalRequests *int              `json:"total_requests"`
	Requests      []json.RawMessage `json:"requests"`
}

type prResponse struct {
	ID    *int   `json:"id"`
	Title string `json:"title"`
	User  struct {
		Name string `json:"name"`
	} `json:"user"`
}

type flagListResponse struct {
	Flags *[]flagResponse `json:"flags"`
}

type flagResponse struct {
	Username string `json:"username"`
	Status   string `json:"status"`
	URL      string `json:"url"`
}

type mergeResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ListOpenPullRequests returns all open pull requests of the component that
// were created by author.
// The order of the result is the order of the API response, no particular
// ordering is guaranteed.
func (clt *Client) ListOpenPullRequests(ctx context.Context, component, author string) ([]*PullRequest, error) {
	u := clt.baseURL.JoinPath("api", "0", "rpms", component, "pull-requests")
	u.RawQuery = url.Values{
		"author": []string{author},
		"status": []string{"Open"},
	}.Encode()

	body, err := clt.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var listing prListResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%w: decoding pull request listing failed: %v", ErrUnexpectedResponse, err)
	}

	if listing.TotalRequests == nil {
		return nil, fmt.Errorf("%w: pull request listing misses total_requests field", ErrUnexpectedResponse)
	}

	result := make([]*PullRequest, 0, len(listing.Requests))
	for _, raw := range listing.Requests {
		var pr prResponse
		if err := json.Unmarshal(raw, &pr); err != nil {
			return nil, fmt.Errorf("%w: decoding pull request failed: %v", ErrUnexpectedResponse, err)
		}

		if pr.ID == nil || *pr.ID <= 0 {
			return nil, fmt.Errorf("%w: pull request has missing or invalid id field", ErrUnexpectedResponse)
		}

		result = append(result, &PullRequest{
			Number: *pr.ID,
			Author: pr.User.Name,
			Title:  pr.Title,
			JSON:   raw,
		})
	}

	return result, nil
}

// PullRequestFlags fetches the current set of CI flags of a pull request.
// It does not cache, every call reflects the current server state.
// A flag with an unrecognized status value is a data contract violation and
// returns an error wrapping ErrUnexpectedResponse.
func (clt *Client) PullRequestFlags(ctx context.Context, component string, prNumber int) ([]*Flag, error) {
	u := clt.baseURL.JoinPath("api", "0", "rpms", component, "pull-request", strconv.Itoa(prNumber), "flag")

	body, err := clt.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var listing flagListResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%w: decoding flag listing failed: %v", ErrUnexpectedResponse, err)
	}

	if listing.Flags == nil {
		return nil, fmt.Errorf("%w: flag listing misses flags field", ErrUnexpectedResponse)
	}

	result := make([]*Flag, 0, len(*listing.Flags))
	for _, flag := range *listing.Flags {
		status, err := toFlagStatus(flag.Status)
		if err != nil {
			return nil, err
		}

		result = append(result, &Flag{
			Name:   flag.Username,
			Status: status,
			URL:    flag.URL,
		})
	}

	return result, nil
}

// MergePullRequest merges a pull request.
// Merging an already merged or closed pull request returns an error wrapping
// ErrAlreadyMerged, the operation is safe to repeat.
func (clt *Client) MergePullRequest(ctx context.Context, component string, prNumber int) error {
	u := clt.baseURL.JoinPath("api", "0", "rpms", component, "pull-request", strconv.Itoa(prNumber), "merge")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := clt.httpClient.Do(req)
	if err != nil {
		return boterr.NewRetryableAnytimeError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return boterr.NewRetryableAnytimeError(fmt.Errorf("reading response body failed: %w", err))
	}

	if err := clt.checkResponseStatus(resp, body); err != nil {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && isAlreadyMergedBody(body) {
			return fmt.Errorf("%w: %s", ErrAlreadyMerged, body)
		}

		return err
	}

	var merge mergeResponse
	if err := json.Unmarshal(body, &merge); err != nil {
		return fmt.Errorf("%w: decoding merge response failed: %v", ErrUnexpectedResponse, err)
	}

	if merge.Message != "Changes merged!" {
		return fmt.Errorf("%w: merge returned unexpected message: %q", ErrUnexpectedResponse, merge.Message)
	}

	clt.logger.Debug(
		"pull request merged",
		logfields.Component(component),
		logfields.PullRequest(prNumber),
		logfields.Event("pagure_pr_merged"),
	)

	return nil
}

func (clt *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := clt.httpClient.Do(req)
	if err != nil {
		return nil, boterr.NewRetryableAnytimeError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, boterr.NewRetryableAnytimeError(fmt.Errorf("reading response body failed: %w", err))
	}

	if err := clt.checkResponseStatus(resp, body); err != nil {
		return nil, err
	}

	return body, nil
}

func (clt *Client) checkResponseStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	err := fmt.Errorf("pagure API returned status %d: %s", resp.StatusCode, body)

	if resp.StatusCode >= 500 && resp.StatusCode < 600 {
		return boterr.NewRetryableAnytimeError(err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if after := retryAfterTime(resp); !after.IsZero() {
			clt.logger.Info(
				"rate limit exceeded",
				logfields.Event("pagure_api_rate_limit_exceeded"),
				zap.Time("pagure_api_rate_limit_reset_time", after),
			)
			return boterr.NewRetryableError(err, after)
		}

		return boterr.NewRetryableAnytimeError(err)
	}

	return err
}

func retryAfterTime(resp *http.Response) time.Time {
	secs := resp.Header.Get("Retry-After")
	if secs == "" {
		return time.Time{}
	}

	d, err := time.ParseDuration(secs + "s")
	if err != nil {
		return time.Time{}
	}

	return time.Now().Add(d)
}

func isAlreadyMergedBody(body []byte) bool {
	var merge mergeResponse
	if err := json.Unmarshal(body, &merge); err != nil {
		return false
	}

	for _, msg := range []string{merge.Error, merge.Message} {
		if msg == "This pull-request was merged or closed" ||
			msg == "This pull-request is closed" {
			return true
		}
	}

	return false
}

func toFlagStatus(status string) (FlagStatus, error) {
	switch status {
	case "success":
		return FlagStatusSuccess, nil
	case "pending":
		return FlagStatusPending, nil
	case "failure":
		return FlagStatusFailure, nil
	default:
		return "", fmt.Errorf("%w: unsupported flag status value: %q", ErrUnexpectedResponse, status)
	}
}
