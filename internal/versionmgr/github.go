package versionmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"
)

// GitHubResolver resolves the latest release tag for a channel from
// the GitHub releases API, caching each channel's result for five
// minutes so repeated "core/versions" page loads in one session don't
// each re-hit the network.
type GitHubResolver struct {
	repo       string // "owner/name"
	httpClient *http.Client

	mu    sync.Mutex
	cache map[Channel]cachedTag
}

type cachedTag struct {
	tag, url string
	at       time.Time
}

const resolverCacheTTL = 5 * time.Minute

func NewGitHubResolver(repo string) *GitHubResolver {
	return &GitHubResolver{
		repo:       repo,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      map[Channel]cachedTag{},
	}
}

type ghRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Resolve implements the resolve callback Manager.InstallChannel
// expects.
func (r *GitHubResolver) Resolve(ctx context.Context, ch Channel) (tag, downloadURL string, err error) {
	r.mu.Lock()
	if c, ok := r.cache[ch]; ok && time.Since(c.at) < resolverCacheTTL {
		r.mu.Unlock()
		return c.tag, c.url, nil
	}
	r.mu.Unlock()

	releases, err := r.fetchReleases(ctx)
	if err != nil {
		return "", "", err
	}
	rel, err := pickRelease(releases, ch)
	if err != nil {
		return "", "", err
	}
	asset, err := pickAsset(rel)
	if err != nil {
		return "", "", err
	}

	r.mu.Lock()
	r.cache[ch] = cachedTag{tag: rel.TagName, url: asset, at: time.Now()}
	r.mu.Unlock()
	return rel.TagName, asset, nil
}

func (r *GitHubResolver) fetchReleases(ctx context.Context) ([]ghRelease, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases", r.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GitHub releases: HTTP %d", resp.StatusCode)
	}
	var releases []ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func pickRelease(releases []ghRelease, ch Channel) (ghRelease, error) {
	for _, rel := range releases {
		switch ch {
		case ChannelStable:
			if !rel.Prerelease {
				return rel, nil
			}
		case ChannelBeta, ChannelNightly:
			if rel.Prerelease {
				return rel, nil
			}
		}
	}
	return ghRelease{}, fmt.Errorf("no release found for channel %q", ch)
}

func pickAsset(rel ghRelease) (string, error) {
	for _, a := range rel.Assets {
		if strings.Contains(strings.ToLower(a.Name), runtime.GOOS) {
			return a.BrowserDownloadURL, nil
		}
	}
	if len(rel.Assets) > 0 {
		return rel.Assets[0].BrowserDownloadURL, nil
	}
	return "", fmt.Errorf("release %s has no assets", rel.TagName)
}
