// Package github implements the CIPlatform port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"

	"github.com/ericfisherdev/wpdispatch/internal/domain/model"
	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CIPlatform = (*Client)(nil)

// DefaultRateLimitMaxWait caps a single rate-limit backoff when no explicit
// limit is configured.
const DefaultRateLimitMaxWait = time.Minute

// Client implements the driven.CIPlatform port for one owner/repo.
//
// Repository and workflow lookups go through meta, whose transport keeps an
// ETag cache but asks for revalidation on every request, so the preflight
// checks never act on a stale 200. Dispatches and run reads go through live,
// which never caches, so run status is always fetched fresh.
type Client struct {
	meta    *gh.Client
	live    *gh.Client
	owner   string
	repo    string
	maxWait time.Duration
}

// NewClient creates a GitHub Actions client with the following transport stacks:
//
//	meta: go-github -> primary rate limit detection -> revalidate -> httpcache
//	live: go-github -> primary rate limit detection
//
// The rate limit transport only detects and logs limits. It never blocks or
// sleeps; retrying is decided by Client.call. apiURL is optional; when set the
// client targets a GitHub Enterprise instance.
func NewClient(token, owner, repo, apiURL string, maxWait time.Duration) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	meta := gh.NewClient(&http.Client{
		Transport: newRateLimitTransport(revalidateTransport{base: cacheTransport}),
	}).WithAuthToken(token)
	live := gh.NewClient(&http.Client{
		Transport: newRateLimitTransport(http.DefaultTransport),
	}).WithAuthToken(token)

	if apiURL != "" {
		var err error
		if meta, err = meta.WithEnterpriseURLs(apiURL, apiURL); err != nil {
			return nil, fmt.Errorf("configuring enterprise URL %q: %w", apiURL, err)
		}
		if live, err = live.WithEnterpriseURLs(apiURL, apiURL); err != nil {
			return nil, fmt.Errorf("configuring enterprise URL %q: %w", apiURL, err)
		}
	}

	if maxWait <= 0 {
		maxWait = DefaultRateLimitMaxWait
	}

	return &Client{
		meta:    meta,
		live:    live,
		owner:   owner,
		repo:    repo,
		maxWait: maxWait,
	}, nil
}

// newRateLimitTransport wraps base with go-github-ratelimit's primary limiter.
// WithBypassLimit keeps it from refusing requests while a limit is active, so
// a limit surfaces as *github_primary_ratelimit.RateLimitReachedError and
// nothing else. The secondary limiter is not used: it re-sends limited
// requests on its own, 429 responses included.
func newRateLimitTransport(base http.RoundTripper) http.RoundTripper {
	return github_ratelimit.NewPrimaryLimiter(base,
		github_primary_ratelimit.WithBypassLimit(),
		github_primary_ratelimit.WithLimitDetectedCallback(func(cb *github_primary_ratelimit.CallbackContext) {
			// The limiter returns an error in place of the response.
			if cb.Response != nil && cb.Response.Body != nil {
				_ = cb.Response.Body.Close()
			}
			slog.Warn("github primary rate limit reached",
				"category", cb.Category,
				"reset_at", cb.ResetTime,
			)
		}),
	)
}

// revalidateTransport sends "Cache-Control: max-age=0" so httpcache
// revalidates a cached response with its ETag instead of serving it for
// GitHub's max-age=60. 304 answers do not count against the rate limit.
type revalidateTransport struct {
	base http.RoundTripper
}

func (t revalidateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Cache-Control") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Cache-Control", "max-age=0")
	return t.base.RoundTrip(req)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
// Both metadata and live calls share the given client.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, owner, repo, token string) (*Client, error) {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		meta:    client,
		live:    client,
		owner:   owner,
		repo:    repo,
		maxWait: DefaultRateLimitMaxWait,
	}, nil
}

// FullName returns "owner/repo".
func (c *Client) FullName() string {
	return c.owner + "/" + c.repo
}

// GetRepository fetches the automation repository.
func (c *Client) GetRepository(ctx context.Context) (*model.Repository, error) {
	var repo *gh.Repository
	err := c.call(ctx, "get repository "+c.FullName(), func() (*gh.Response, error) {
		r, resp, err := c.meta.Repositories.Get(ctx, c.owner, c.repo)
		repo = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	return &model.Repository{
		FullName:      repo.GetFullName(),
		DefaultBranch: repo.GetDefaultBranch(),
		HTMLURL:       repo.GetHTMLURL(),
	}, nil
}

// GetWorkflow fetches a workflow definition by its file name.
func (c *Client) GetWorkflow(ctx context.Context, workflow model.WorkflowDescriptor) (*model.Workflow, error) {
	var wf *gh.Workflow
	err := c.call(ctx, fmt.Sprintf("get workflow %s in %s", workflow, c.FullName()), func() (*gh.Response, error) {
		w, resp, err := c.meta.Actions.GetWorkflowByFileName(ctx, c.owner, c.repo, string(workflow))
		wf = w
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	return &model.Workflow{
		ID:      wf.GetID(),
		Name:    wf.GetName(),
		Path:    wf.GetPath(),
		State:   wf.GetState(),
		HTMLURL: wf.GetHTMLURL(),
	}, nil
}

// CreateDispatch triggers a workflow_dispatch event for the workflow on ref.
// GitHub answers 204 No Content and reports no run id.
func (c *Client) CreateDispatch(ctx context.Context, workflow model.WorkflowDescriptor, ref string, inputs map[string]string) error {
	event := gh.CreateWorkflowDispatchEventRequest{Ref: ref}
	if len(inputs) > 0 {
		event.Inputs = make(map[string]any, len(inputs))
		for k, v := range inputs {
			event.Inputs[k] = v
		}
	}

	return c.call(ctx, fmt.Sprintf("dispatch %s on %s@%s", workflow, c.FullName(), ref), func() (*gh.Response, error) {
		return c.live.Actions.CreateWorkflowDispatchEventByFileName(ctx, c.owner, c.repo, string(workflow), event)
	})
}

// GetRun fetches a single workflow run.
func (c *Client) GetRun(ctx context.Context, runID int64) (*model.WorkflowRun, error) {
	var run *gh.WorkflowRun
	err := c.call(ctx, fmt.Sprintf("get run %d in %s", runID, c.FullName()), func() (*gh.Response, error) {
		r, resp, err := c.live.Actions.GetWorkflowRunByID(ctx, c.owner, c.repo, runID)
		run = r
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	mapped := mapWorkflowRun(run)
	return &mapped, nil
}

// ListRuns returns one page of runs for the workflow, in the order GitHub
// returns them (newest first).
func (c *Client) ListRuns(ctx context.Context, workflow model.WorkflowDescriptor, opts driven.ListRunsOptions) ([]model.WorkflowRun, error) {
	listOpts := &gh.ListWorkflowRunsOptions{
		Branch:      opts.Branch,
		Event:       opts.Event,
		ListOptions: gh.ListOptions{PerPage: opts.Limit},
	}

	var page *gh.WorkflowRuns
	err := c.call(ctx, fmt.Sprintf("list runs of %s in %s", workflow, c.FullName()), func() (*gh.Response, error) {
		p, resp, err := c.live.Actions.ListWorkflowRunsByFileName(ctx, c.owner, c.repo, string(workflow), listOpts)
		page = p
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	runs := make([]model.WorkflowRun, 0, len(page.WorkflowRuns))
	for _, r := range page.WorkflowRuns {
		runs = append(runs, mapWorkflowRun(r))
	}

	return runs, nil
}

// mapWorkflowRun converts a go-github WorkflowRun to a domain model WorkflowRun.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapWorkflowRun(r *gh.WorkflowRun) model.WorkflowRun {
	return model.WorkflowRun{
		ID:           r.GetID(),
		RunNumber:    r.GetRunNumber(),
		Status:       r.GetStatus(),
		Conclusion:   r.GetConclusion(),
		HTMLURL:      r.GetHTMLURL(),
		LogsURL:      r.GetLogsURL(),
		HeadBranch:   r.GetHeadBranch(),
		Event:        r.GetEvent(),
		DisplayTitle: r.GetDisplayTitle(),
		CreatedAt:    r.GetCreatedAt().Time,
		UpdatedAt:    r.GetUpdatedAt().Time,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
