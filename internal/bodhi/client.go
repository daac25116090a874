// Package bodhi talks to the Bodhi update-tracking service.
//
// Release information is read from the REST API, update lookups shell out to
// the bodhi command line client like the rest of the packaging tooling.
package bodhi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/boterr"
	"github.com/osbuild/fedora-bot/internal/cmdexec"
)

const DefaultBaseURL = "https://bodhi.fedoraproject.org"

const defHTTPTimeout = time.Minute

// ErrUnexpectedResponse is wrapped by errors returned when the Bodhi API
// answered with a response that violates the expected data contract.
var ErrUnexpectedResponse = errors.New("unexpected bodhi API response")

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	runner     cmdexec.Runner
	logger     *zap.Logger
}

func New(baseURL string, runner cmdexec.Runner) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url failed: %w", err)
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defHTTPTimeout},
		runner:     runner,
		logger:     zap.L().Named("bodhi"),
	}, nil
}

type releasesResponse struct {
	Releases *[]releaseResponse `json:"releases"`
}

type releaseResponse struct {
	Version  string `json:"version"`
	IDPrefix string `json:"id_prefix"`
}

// ActiveReleases returns the version strings of all current Fedora releases,
// excluding rawhide.
// Transient failures are returned as boterr.RetryableError.
func (c *Client) ActiveReleases(ctx context.Context) ([]string, error) {
	u := c.baseURL.JoinPath("releases")
	u.RawQuery = url.Values{"state": []string{"current"}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, boterr.NewRetryableAnytimeError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, boterr.NewRetryableAnytimeError(fmt.Errorf("reading response body failed: %w", err))
	}

	if resp.StatusCode >= 500 && resp.StatusCode < 600 {
		return nil, boterr.NewRetryableAnytimeError(fmt.Errorf("bodhi API returned status %d: %s", resp.StatusCode, body))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bodhi API returned status %d: %s", resp.StatusCode, body)
	}

	var releases releasesResponse
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, fmt.Errorf("%w: decoding releases failed: %v", ErrUnexpectedResponse, err)
	}

	if releases.Releases == nil {
		return nil, fmt.Errorf("%w: releases field is missing", ErrUnexpectedResponse)
	}

	// versions can appear multiple times, e.g. for parallel composes
	seen := make(map[string]struct{}, len(*releases.Releases))
	result := make([]string, 0, len(*releases.Releases))
	for _, release := range *releases.Releases {
		if release.IDPrefix != "FEDORA" {
			continue
		}

		if _, exists := seen[release.Version]; exists {
			continue
		}

		seen[release.Version] = struct{}{}
		result = append(result, release.Version)
	}

	sort.Strings(result)

	return result, nil
}

// UpdateExists returns true when an update containing the build with the
// given NVR was already published.
func (c *Client) UpdateExists(ctx context.Context, nvr string) (bool, error) {
	out, err := c.runner.Run(ctx, "", "bodhi", "updates", "query", "--builds", nvr)
	if err != nil {
		return false, err
	}

	return !strings.Contains(out, "0 updates found"), nil
}
