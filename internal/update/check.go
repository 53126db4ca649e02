// Package update checks a release manifest for a newer tekkencord build.
//
// The manifest is a small JSON document, {"version": "1.2.3"}, served from
// the URL in update.manifest_url. The check is advisory: it runs once at
// startup and every failure is logged at debug and otherwise ignored.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxManifestBytes caps how much of the response body is read.
const maxManifestBytes = 64 << 10

// ///////////////////////////////////////////////
// Checker
// ///////////////////////////////////////////////

// Checker queries one release manifest.
type Checker struct {
	url    string
	client *retryablehttp.Client
}

// NewChecker returns a Checker for the manifest at url. Requests retry twice
// and time out after 5 seconds each.
func NewChecker(url string) *Checker {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil // suppress retryablehttp's default logging
	return &Checker{url: url, client: client}
}

// Result is the outcome of a successful check.
type Result struct {
	Current string
	Latest  string
	// Newer is true when Latest is a strictly higher version than Current.
	Newer bool
}

// Latest fetches the manifest and compares its version with current.
func (c *Checker) Latest(ctx context.Context, current string) (Result, error) {
	latest, err := c.fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Current: current,
		Latest:  latest,
		Newer:   latest != "" && latest != current && semverLess(current, latest),
	}, nil
}

// Check runs [Checker.Latest] and logs when a newer version exists.
// Failures are logged at debug only.
func (c *Checker) Check(ctx context.Context, current string) {
	if c.url == "" {
		slog.Debug("skipping version check: no manifest URL configured")
		return
	}
	res, err := c.Latest(ctx, current)
	if err != nil {
		slog.Debug("version check failed", "error", err)
		return
	}
	if res.Newer {
		slog.Info("new version available", "current", res.Current, "latest", res.Latest)
	}
}

// manifest is the release manifest document.
type manifest struct {
	Version string `json:"version"`
}

// fetch downloads the manifest and returns its trimmed version string.
func (c *Checker) fetch(ctx context.Context) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", c.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("parsing manifest: %w", err)
	}
	return strings.TrimSpace(m.Version), nil
}

// ///////////////////////////////////////////////
// Version comparison
// ///////////////////////////////////////////////

// semverLess returns true if a < b using simple numeric comparison.
// Non-semver strings are not compared. A pre-release version is less than
// the same version without one ("0.1.0-dev" < "0.1.0").
func semverLess(a, b string) bool {
	pa := parseSemver(a)
	pb := parseSemver(b)
	if pa == nil || pb == nil {
		return false
	}
	for i := range 3 {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return hasPreRelease(a) && !hasPreRelease(b)
}

// hasPreRelease reports whether a version string carries a "-" suffix.
func hasPreRelease(s string) bool {
	return strings.Contains(strings.TrimPrefix(s, "v"), "-")
}

// parseSemver splits "v1.2.3" or "0.1.0-dev" into [major, minor, patch].
// Suffixes after "-" or "+" are stripped. Returns nil for anything else.
func parseSemver(s string) []int {
	parts := strings.SplitN(strings.TrimPrefix(s, "v"), ".", 3)
	if len(parts) != 3 {
		return nil
	}
	result := make([]int, 3)
	for i, p := range parts {
		if idx := strings.IndexAny(p, "-+"); idx >= 0 {
			p = p[:idx]
		}
		if p == "" {
			return nil
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil
			}
			n = n*10 + int(c-'0')
		}
		result[i] = n
	}
	return result
}
