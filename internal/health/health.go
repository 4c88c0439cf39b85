// Package health holds the startup preflight checks main.go runs before it
// starts accepting requests: the external extractor binary must be on PATH,
// and the external music provider's token endpoint must be reachable.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"

	"github.com/snapetech/audiocache/internal/httpclient"
)

// CheckExtractorBinary verifies name (e.g. "yt-dlp") resolves on PATH. The
// Fetcher invokes it lazily on first cache miss, so a missing binary would
// otherwise surface only once a user asks for a song.
func CheckExtractorBinary(name string) error {
	if name == "" {
		return fmt.Errorf("no extractor binary configured")
	}
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("extractor %q not found on PATH: %w", name, err)
	}
	return nil
}

// CheckUpstream performs a GET against url and treats any 2xx/3xx/4xx
// response as "reachable" — a 4xx here just means the endpoint doesn't like
// an unauthenticated probe, not that the network path is broken. Only a
// transport-level failure or a 5xx is reported.
func CheckUpstream(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpclient.Default().Do(req)
	if err != nil {
		return fmt.Errorf("upstream unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}
	return nil
}
