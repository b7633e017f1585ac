package runs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/caabsu/outlight-img2img/internal/providers"
)

// persistArtifact copies a finished artifact into local storage and returns
// the URL to expose for it. Persistence is best effort: on any failure the
// provider URL is kept so the outcome still points at something usable.
func (reg *Registry) persistArtifact(ctx context.Context, run *Run, index int, result providers.Result) string {
	if reg.store == nil {
		return result.ArtifactURL
	}

	data := result.Data
	format := result.Format
	if len(data) == 0 && isHTTPURL(result.ArtifactURL) {
		fetched, contentType, err := reg.fetchArtifact(ctx, result.ArtifactURL)
		if err != nil {
			reg.logger.Warn().Err(err).
				Str("run_id", run.ID).
				Int("prompt_index", index).
				Msg("runs: artifact download failed, keeping provider url")
			return result.ArtifactURL
		}
		data = fetched
		if contentType != "" {
			format = contentType
		}
	}
	if len(data) == 0 {
		return result.ArtifactURL
	}

	key := artifactKey(run.ID, index, format)
	savedKey, err := reg.store.Write(ctx, key, data)
	if err != nil {
		reg.logger.Warn().Err(err).
			Str("run_id", run.ID).
			Str("key", key).
			Msg("runs: persist artifact failed, keeping provider url")
		return result.ArtifactURL
	}
	return reg.publicURL(savedKey)
}

// fetchArtifact downloads a provider-hosted artifact. Provider URLs expire,
// so this happens right after the job succeeds.
func (reg *Registry) fetchArtifact(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("runs: build artifact request: %w", err)
	}
	resp, err := reg.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("runs: download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("runs: artifact download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("runs: read artifact: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (reg *Registry) publicURL(storageKey string) string {
	return reg.publicBase + "/static/" + storageKey
}

func artifactKey(runID string, index int, format string) string {
	return fmt.Sprintf("runs/%s/prompt-%02d%s", runID, index+1, extensionForFormat(format))
}

func extensionForFormat(format string) string {
	if i := strings.IndexByte(format, ';'); i >= 0 {
		format = format[:i]
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "image/png", "image":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4", "video":
		return ".mp4"
	default:
		return ".bin"
	}
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
