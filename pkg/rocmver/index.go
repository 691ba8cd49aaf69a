package rocmver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// versionDirPattern matches version-named directory links in an Apache-style
// repository listing (e.g. `href="6.4.3/"`).
var versionDirPattern = regexp.MustCompile(`href="(\d+\.\d+(?:\.\d+)?)/?"`)

// anyVersionPattern matches the first bare version token on a page. Used to
// resolve the "latest" alias, whose listing page names the release it points
// at.
var anyVersionPattern = regexp.MustCompile(`\b(\d+\.\d+\.\d+)\b`)

// HTTPIndex queries a directory-style package index over HTTP. Every query is
// best-effort; callers treat errors as absence of the probed path.
type HTTPIndex struct {
	baseURL string
	client  *http.Client
}

// NewHTTPIndex creates an index client for the given base URL
// (e.g. "https://repo.radeon.com/rocm/apt/").
func NewHTTPIndex(baseURL string) *HTTPIndex {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPIndex{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SeriesExists probes the index for a series directory.
func (i *HTTPIndex) SeriesExists(ctx context.Context, series string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, i.baseURL+series+"/", nil)
	if err != nil {
		return false, err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("series probe failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("series probe returned status %d", resp.StatusCode)
	}
}

// LatestAlias fetches the index's "latest" directory and extracts the
// concrete version it points at.
func (i *HTTPIndex) LatestAlias(ctx context.Context) (Version, error) {
	body, err := i.fetch(ctx, i.baseURL+"latest/")
	if err != nil {
		return Version{}, err
	}

	m := anyVersionPattern.FindStringSubmatch(body)
	if m == nil {
		return Version{}, fmt.Errorf("latest alias page contains no version token")
	}
	return Parse(m[1])
}

// ListVersions scrapes the index root listing for version-named directories.
func (i *HTTPIndex) ListVersions(ctx context.Context) ([]Version, error) {
	body, err := i.fetch(ctx, i.baseURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[Version]bool)
	var versions []Version
	for _, m := range versionDirPattern.FindAllStringSubmatch(body, -1) {
		v, err := Parse(m[1])
		if err != nil {
			continue
		}
		if !seen[v] {
			seen[v] = true
			versions = append(versions, v)
		}
	}

	if len(versions) == 0 {
		return nil, fmt.Errorf("index listing contains no version directories")
	}
	return versions, nil
}

func (i *HTTPIndex) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("index fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("index fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read index body: %w", err)
	}
	return string(body), nil
}
