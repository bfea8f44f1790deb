// Package update checks GitHub for a newer SDRbot release at startup.
// Failures are silent: a missing network must never delay or break a
// session beyond the check's own short timeout.
package update

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	repoOwner    = "NForce-ai"
	repoName     = "SDRbot"
	checkTimeout = 2 * time.Second
	userAgent    = "sdrbot-cli"

	// TestEnvVar fakes an available update for manual testing, e.g.
	// SDRBOT_TEST_UPDATE=99.0.0.
	TestEnvVar = "SDRBOT_TEST_UPDATE"
)

// releaseBaseURL is overridden in tests.
var releaseBaseURL = "https://github.com"

// CheckForUpdate reports whether a newer release than version exists.
// Returns the latest tag and its release page when one does. Dev builds
// never report an update; any error reports none.
func CheckForUpdate(ctx context.Context, version string) (latest, releaseURL string, ok bool) {
	if fake := os.Getenv(TestEnvVar); fake != "" {
		return fake, fmt.Sprintf("https://github.com/%s/%s/releases/tag/v%s", repoOwner, repoName, fake), true
	}
	if version == "dev" {
		return "", "", false
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	tag, err := latestReleaseTag(ctx)
	if err != nil || !outdated(version, tag) {
		return "", "", false
	}
	return tag, fmt.Sprintf("%s/%s/%s/releases/tag/%s", releaseBaseURL, repoOwner, repoName, tag), true
}

// latestReleaseTag resolves the releases/latest redirect instead of calling
// the GitHub API, which rate-limits unauthenticated callers.
func latestReleaseTag(ctx context.Context) (string, error) {
	releaseURL := fmt.Sprintf("%s/%s/%s/releases/latest", releaseBaseURL, repoOwner, repoName)
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("expected redirect, got %d", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("redirect response missing Location header")
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if !strings.Contains(parsed.Path, "/releases/tag/") {
		return "", fmt.Errorf("unexpected redirect path: %s", parsed.Path)
	}
	tag := path.Base(parsed.Path)
	if tag == "" || tag == "." || tag == "/" {
		return "", fmt.Errorf("no tag in redirect URL: %s", location)
	}
	return tag, nil
}

func outdated(current, latest string) bool {
	current = normalizeVersion(current)
	latest = normalizeVersion(latest)
	if current == "" || latest == "" {
		return false
	}
	cmp, ok := compareVersions(current, latest)
	return ok && cmp < 0
}

// normalizeVersion strips the v prefix and any non-numeric suffix
// ("v1.2.3-rc1" becomes "1.2.3").
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexFunc(v, func(r rune) bool { return (r < '0' || r > '9') && r != '.' }); i >= 0 {
		v = v[:i]
	}
	return v
}

// compareVersions returns -1, 0, or 1 for a<b, a==b, a>b. Parts missing on
// one side count as zero, so "1.2" equals "1.2.0".
func compareVersions(a, b string) (int, bool) {
	aParts, ok := versionParts(a)
	if !ok {
		return 0, false
	}
	bParts, ok := versionParts(b)
	if !ok {
		return 0, false
	}
	for len(aParts) < len(bParts) {
		aParts = append(aParts, 0)
	}
	for len(bParts) < len(aParts) {
		bParts = append(bParts, 0)
	}
	for i := range aParts {
		if aParts[i] != bParts[i] {
			if aParts[i] < bParts[i] {
				return -1, true
			}
			return 1, true
		}
	}
	return 0, true
}

func versionParts(v string) ([]int, bool) {
	if v == "" {
		return nil, false
	}
	pieces := strings.Split(v, ".")
	parts := make([]int, len(pieces))
	for i, piece := range pieces {
		n, err := strconv.Atoi(piece)
		if err != nil {
			return nil, false
		}
		parts[i] = n
	}
	return parts, true
}
