package storeprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/inkbound/novelhost/internal/errors"
)

// GitHubProvider is a read-only provider that resolves a repository's
// default branch via the GitHub API (optionally authenticated) and
// reads files through raw.githubusercontent.com, rather than cloning.
// It's the lightest-weight option for a store that's only ever read
// from, never pushed to, by this host.
type GitHubProvider struct {
	owner, repo string
	token       string
	ttl         time.Duration
	httpClient  *http.Client

	mu         sync.Mutex
	lastSync   time.Time
	etags      map[string]string
}

// NewGitHub builds a GitHubProvider for owner/repo. token may be empty
// for public repositories.
func NewGitHub(owner, repo, token string, ttl time.Duration) *GitHubProvider {
	return &GitHubProvider{
		owner: owner, repo: repo, token: token, ttl: ttl,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		etags:      map[string]string{},
	}
}

// NeedsSync implements Provider.
func (p *GitHubProvider) NeedsSync(dir string) bool {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ttl <= 0 {
		return false
	}
	return time.Since(p.lastSync) >= p.ttl
}

type githubContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

func (p *GitHubProvider) apiRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if etag, ok := p.etags[url]; ok {
		req.Header.Set("If-None-Match", etag)
	}
	return p.httpClient.Do(req)
}

// Sync implements Provider: walks the repository's default branch tree
// and mirrors every file into dir, skipping unchanged files by ETag.
func (p *GitHubProvider) Sync(ctx context.Context, dir string) (*SyncResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeIOOperation, "create store directory")
	}

	result := &SyncResult{}
	if err := p.syncDir(ctx, dir, "", result); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.lastSync = time.Now()
	p.mu.Unlock()
	result.CompletedAt = p.lastSync
	return result, nil
}

func (p *GitHubProvider) syncDir(ctx context.Context, dir, path string, result *SyncResult) error {
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/contents/%s", p.owner, p.repo, path)
	resp, err := p.apiRequest(ctx, apiURL)
	if err != nil {
		return errors.Wrap(err, errors.CodeIOOperation, "list repository contents")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.CodeIOOperation, "github api returned status %d for %s", resp.StatusCode, path)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		p.etags[apiURL] = etag
	}

	var entries []githubContentEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return errors.Wrap(err, errors.CodeDataConversionError, "decode repository contents")
	}

	for _, entry := range entries {
		localPath := filepath.Join(dir, entry.Path)
		switch entry.Type {
		case "dir":
			if err := os.MkdirAll(localPath, 0o755); err != nil {
				return errors.Wrap(err, errors.CodeIOOperation, "create store subdirectory")
			}
			if err := p.syncDir(ctx, dir, entry.Path, result); err != nil {
				return err
			}
		case "file":
			changed, err := p.downloadFile(ctx, entry, localPath)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", entry.Path, err))
				continue
			}
			if changed {
				result.Updated = true
				result.Changes = append(result.Changes, entry.Path)
			}
		}
	}
	return nil
}

func (p *GitHubProvider) downloadFile(ctx context.Context, entry githubContentEntry, localPath string) (bool, error) {
	resp, err := p.apiRequest(ctx, entry.DownloadURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return false, err
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		p.etags[entry.DownloadURL] = etag
	}
	return true, nil
}
