// google_fonts.go downloads font files from the Google Fonts CSS API.
//
// Font specs use the format "google:FAMILY:WEIGHT" (e.g. "google:Oswald:700").
// Downloaded fonts are cached locally so they aren't re-fetched on every run.

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tdewolff/font"
)

// fontURLRe extracts the font file URL from the CSS response, e.g.
// url(https://fonts.gstatic.com/s/oswald/v53/xxx.woff2).
var fontURLRe = regexp.MustCompile(`url\((https://fonts\.gstatic\.com/[^)]+)\)`)

// cssAPI is the Google Fonts CSS endpoint.
var cssAPI = "https://fonts.googleapis.com/css2"

// userAgent makes Google serve WOFF2 URLs, which [maybeConvertWOFF2] handles.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// ParseGoogleFontSpec parses a "google:Family:Weight" spec into its parts.
func ParseGoogleFontSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// newHTTPClient returns a retrying client with logging disabled.
func newHTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.HTTPClient.Timeout = 15 * time.Second
	c.Logger = nil
	return c
}

// FetchGoogleFont downloads a font from Google Fonts, caching the result in
// cacheDir. Returns SFNT (TTF/OTF) bytes.
func FetchGoogleFont(spec, cacheDir string) ([]byte, error) {
	family, weight, ok := ParseGoogleFontSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", spec)
	}

	cacheFile := filepath.Join(cacheDir, fmt.Sprintf("%s-%s.ttf", family, weight))
	if data, err := os.ReadFile(cacheFile); err == nil {
		return data, nil
	}

	client := newHTTPClient()
	cssURL := fmt.Sprintf("%s?family=%s:wght@%s", cssAPI, url.QueryEscape(family), weight)
	css, err := get(client, cssURL, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("fetching CSS for %s wght@%s: %w", family, weight, err)
	}

	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL found in Google Fonts CSS response for %s wght@%s", family, weight)
	}
	fontURL := string(m[1])

	data, err := get(client, fontURL, 10<<20)
	if err != nil {
		return nil, fmt.Errorf("downloading font file: %w", err)
	}
	data, err = maybeConvertWOFF2(fontURL, data)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating font cache dir: %w", err)
	}
	if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "  warning: failed to cache font: %v\n", err)
	}
	return data, nil
}

// get fetches rawURL and returns at most limit bytes of a 200 response.
func get(client *retryablehttp.Client, rawURL string, limit int64) ([]byte, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// maybeConvertWOFF2 converts WOFF2 font data to SFNT format if needed.
// name is a file path or URL used for the extension check.
func maybeConvertWOFF2(name string, data []byte) ([]byte, error) {
	if !isWOFF2(name, data) {
		return data, nil
	}
	sfnt, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert woff2 to sfnt: %w", err)
	}
	return sfnt, nil
}

// isWOFF2 checks whether font data is WOFF2 by extension or the "wOF2" magic.
func isWOFF2(name string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(name), ".woff2") {
		return true
	}
	return len(data) >= 4 && string(data[:4]) == "wOF2"
}
