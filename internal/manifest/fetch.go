package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/afero"
)

type fetchResult struct {
	body         []byte
	etag         string
	lastModified string
	notModified  bool
}

var errFileMissing = errors.New("manifest file missing")

// fetchURL performs one GET against the configured URL. With conditional set,
// stored validators are sent as If-None-Match / If-Modified-Since.
func (s *Store) fetchURL(ctx context.Context, conditional bool, etag, lastModified string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fetchResult{}, &FetchError{Source: SourceURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if conditional {
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		if lastModified != "" {
			req.Header.Set("If-Modified-Since", lastModified)
		}
	}
	s.log.Debug().Str("url", s.url).Bool("conditional", conditional).Msg("fetching manifest")
	resp, err := s.client.Do(req)
	if err != nil {
		return fetchResult{}, &FetchError{Source: SourceURL, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fetchResult{notModified: true}, nil
	case http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fetchResult{}, &FetchError{Source: SourceURL, Err: fmt.Errorf("read body: %w", err)}
		}
		return fetchResult{
			body:         b,
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		}, nil
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fetchResult{}, &FetchError{Source: SourceURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// readFile reads the local fallback copy. A missing file is not an error of
// its own; the caller reports the overall absence of a manifest instead.
func (s *Store) readFile() ([]byte, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errFileMissing
		}
		return nil, &FetchError{Source: SourceFile, Err: err}
	}
	return b, nil
}
