package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
)

// RepositoryLister lists the repositories of a GitHub owner.
type RepositoryLister interface {
	ListRepositories(ctx context.Context, owner string) ([]*github.Repository, error)
}

// GitHubLister lists repositories through the GitHub API, waiting out rate
// limits.
type GitHubLister struct {
	client     *github.Client
	logger     *slog.Logger
	maxRetries int
}

// NewGitHubClient creates a GitHub client authenticated with token. A
// non-empty baseURL selects a GitHub Enterprise server.
func NewGitHubClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := github.NewClient(httpClient)

	if baseURL != "" {
		var err error

		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise url: %w", err)
		}
	}

	return client, nil
}

// NewGitHubLister wraps client.
func NewGitHubLister(client *github.Client, logger *slog.Logger) *GitHubLister {
	if logger == nil {
		logger = slog.Default()
	}

	return &GitHubLister{client: client, logger: logger, maxRetries: 3}
}

// ListRepositories lists an organization's repositories, or a user's when
// owner is not an organization.
func (l *GitHubLister) ListRepositories(ctx context.Context, owner string) ([]*github.Repository, error) {
	repos, err := l.paginate(ctx, func(page int) ([]*github.Repository, *github.Response, error) {
		return l.client.Repositories.ListByOrg(ctx, owner, &github.RepositoryListByOrgOptions{
			ListOptions: github.ListOptions{PerPage: 100, Page: page},
		})
	})

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		l.logger.Debug("owner is not an organization, listing user repositories", slog.String("owner", owner))

		return l.paginate(ctx, func(page int) ([]*github.Repository, *github.Response, error) {
			return l.client.Repositories.ListByUser(ctx, owner, &github.RepositoryListByUserOptions{
				ListOptions: github.ListOptions{PerPage: 100, Page: page},
			})
		})
	}

	return repos, err
}

func (l *GitHubLister) paginate(ctx context.Context, list func(page int) ([]*github.Repository, *github.Response, error)) ([]*github.Repository, error) {
	var all []*github.Repository

	page := 0

	for {
		repos, resp, err := l.withRetry(ctx, func() ([]*github.Repository, *github.Response, error) {
			return list(page)
		})
		if err != nil {
			return nil, err
		}

		all = append(all, repos...)

		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}

		page = resp.NextPage
	}
}

func (l *GitHubLister) withRetry(ctx context.Context, call func() ([]*github.Repository, *github.Response, error)) ([]*github.Repository, *github.Response, error) {
	for attempt := 0; ; attempt++ {
		repos, resp, err := call()
		if err == nil || attempt >= l.maxRetries {
			return repos, resp, err
		}

		var wait time.Duration

		var (
			rateErr  *github.RateLimitError
			abuseErr *github.AbuseRateLimitError
		)

		switch {
		case errors.As(err, &rateErr):
			wait = time.Until(rateErr.Rate.Reset.Time) + time.Second
		case errors.As(err, &abuseErr):
			wait = abuseErr.GetRetryAfter()
		default:
			return repos, resp, err
		}

		l.logger.Warn("rate limited by GitHub API",
			slog.Int("attempt", attempt+1),
			slog.Duration("wait_duration", wait),
		)

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GitHubImportRequest selects which repositories of Owner to add.
type GitHubImportRequest struct {
	Owner           string
	CredentialID    *string
	UseSSH          bool
	IncludeForks    bool
	IncludeArchived bool
}

// ImportResult lists the ids added and the repositories left out.
type ImportResult struct {
	Added   []string
	Skipped []string
}

// ImportGitHub adds every matching repository of req.Owner that is not
// configured yet. Ids are derived from the clone URL.
func (m *Manager) ImportGitHub(ctx context.Context, lister RepositoryLister, req GitHubImportRequest) (*ImportResult, error) {
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return nil, errors.New("github owner is required")
	}

	repos, err := lister.ListRepositories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories of %s: %w", owner, err)
	}

	result := &ImportResult{}

	for _, r := range repos {
		if (r.GetFork() && !req.IncludeForks) || (r.GetArchived() && !req.IncludeArchived) {
			result.Skipped = append(result.Skipped, r.GetFullName())
			continue
		}

		url := r.GetCloneURL()
		if req.UseSSH {
			url = r.GetSSHURL()
		}

		if url == "" {
			result.Skipped = append(result.Skipped, r.GetFullName())
			continue
		}

		added, err := m.AddRepository(AddRepositoryRequest{URL: url, CredentialID: req.CredentialID})
		if errors.Is(err, ErrDuplicateID) {
			result.Skipped = append(result.Skipped, r.GetFullName())
			continue
		}

		if err != nil {
			return result, err
		}

		result.Added = append(result.Added, added.ID)
	}

	m.logger.Info("github import finished",
		slog.String("owner", owner),
		slog.Int("added", len(result.Added)),
		slog.Int("skipped", len(result.Skipped)),
	)

	return result, nil
}
