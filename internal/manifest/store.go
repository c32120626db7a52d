package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const defaultFetchTimeout = 30 * time.Second

// Config configures a Store. URL takes precedence over Path; Path is used as
// the fallback copy when a load allows it.
type Config struct {
	URL          string
	Path         string
	FetchTimeout time.Duration
	// Client overrides the HTTP client (tests). Defaults to a client with FetchTimeout.
	Client *http.Client
	// Fs overrides the filesystem used for the fallback file. Defaults to the OS filesystem.
	Fs     afero.Fs
	Logger zerolog.Logger
}

// Store holds the current manifest snapshot. Loads are serialized; readers
// never block on a load in progress beyond a short read lock.
type Store struct {
	url    string
	path   string
	client *http.Client
	fs     afero.Fs
	log    zerolog.Logger

	loadMu sync.Mutex

	mu           sync.RWMutex
	snap         *Snapshot
	etag         string
	lastModified string
	lastErr      error
}

// New constructs an empty Store. Nothing is fetched until Load is called.
func New(cfg Config) *Store {
	s := &Store{
		url:    strings.TrimSpace(cfg.URL),
		path:   cfg.Path,
		client: cfg.Client,
		fs:     cfg.Fs,
		log:    cfg.Logger,
		snap:   &Snapshot{Models: map[string]*ModelNode{}},
	}
	if s.client == nil {
		timeout := cfg.FetchTimeout
		if timeout <= 0 {
			timeout = defaultFetchTimeout
		}
		s.client = &http.Client{Timeout: timeout}
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	return s
}

// HasRemote reports whether a manifest URL is configured.
func (s *Store) HasRemote() bool { return s.url != "" }

// LoadOptions controls a single Load.
type LoadOptions struct {
	// Conditional sends the stored validators so the source may answer 304.
	Conditional bool
	// AllowFallback permits reading the local copy when the URL yields nothing.
	AllowFallback bool
}

// Load fetches the manifest and replaces the snapshot when its content hash
// changed. It reports changed=false for 304 responses and identical content.
// A non-nil error means no source produced data; the previous snapshot is kept.
func (s *Store) Load(ctx context.Context, opts LoadOptions) (bool, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	s.lastErr = nil
	etag, lastMod := s.etag, s.lastModified
	prevHash := s.snap.Hash
	s.mu.Unlock()

	var (
		raw    []byte
		models map[string]*ModelNode
		source Source
		errs   []error
		resp   fetchResult
	)

	if s.url != "" {
		var err error
		resp, err = s.fetchURL(ctx, opts.Conditional, etag, lastMod)
		switch {
		case err != nil:
			errs = append(errs, err)
			s.log.Warn().Err(err).Str("url", s.url).Msg("manifest fetch failed")
		case resp.notModified:
			s.log.Debug().Str("url", s.url).Msg("manifest not modified")
			return false, nil
		default:
			m, perr := parseModels(resp.body)
			if perr != nil {
				perr = &ParseError{Source: SourceURL, Err: perr}
				errs = append(errs, perr)
				s.log.Warn().Err(perr).Msg("manifest parse failed")
			} else {
				raw, models, source = resp.body, m, SourceURL
			}
		}
	}

	if source == SourceNone && opts.AllowFallback && s.path != "" {
		b, err := s.readFile()
		switch {
		case errors.Is(err, errFileMissing):
		case err != nil:
			errs = append(errs, err)
			s.log.Warn().Err(err).Str("path", s.path).Msg("manifest file read failed")
		default:
			m, perr := parseModels(b)
			if perr != nil {
				perr = &ParseError{Source: SourceFile, Err: perr}
				errs = append(errs, perr)
				s.log.Warn().Err(perr).Msg("manifest parse failed")
			} else {
				raw, models, source = b, m, SourceFile
				s.log.Info().Str("path", s.path).Msg("manifest loaded from local file")
			}
		}
	}

	if source == SourceNone {
		err := ErrNoManifest
		if len(errs) > 0 {
			err = errors.Join(errs...)
		}
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return false, err
	}

	hash := hashBytes(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateValidators(source, resp)
	if prevHash != "" && hash == prevHash {
		s.log.Debug().Str("source", string(source)).Msg("manifest unchanged (hash match)")
		return false, nil
	}
	s.snap = &Snapshot{
		Models:   models,
		Hash:     hash,
		Source:   source,
		LoadedAt: time.Now(),
	}
	s.log.Info().Int("models", len(models)).Str("source", string(source)).Str("hash", hash[:12]).Msg("manifest loaded")
	return true, nil
}

// updateValidators must be called with s.mu held. File sources have no HTTP
// validators, so they clear them; URL responses only overwrite what they carry.
func (s *Store) updateValidators(source Source, resp fetchResult) {
	if source == SourceFile {
		s.etag, s.lastModified = "", ""
		return
	}
	if resp.etag != "" {
		s.etag = resp.etag
	}
	if resp.lastModified != "" {
		s.lastModified = resp.lastModified
	}
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ModelNames returns all indexed model names, sorted.
func (s *Store) ModelNames() []string {
	snap := s.Snapshot()
	out := make([]string, 0, len(snap.Models))
	for name := range snap.Models {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Model returns the full node for name.
func (s *Store) Model(name string) (*ModelNode, bool) {
	return s.Snapshot().Model(name)
}

// Tags returns the model's tags, or nil for unknown models.
func (s *Store) Tags(name string) []string {
	if n, ok := s.Model(name); ok {
		return append([]string(nil), n.Tags...)
	}
	return nil
}

// Columns returns the model's columns in document order.
func (s *Store) Columns(name string) []Column {
	if n, ok := s.Model(name); ok {
		return append([]Column(nil), n.Columns...)
	}
	return nil
}

// TableName returns `schema.alias` for a known model and the bare name otherwise.
func (s *Store) TableName(name string) string {
	if n, ok := s.Model(name); ok {
		return n.TableName()
	}
	return name
}

// Count returns the number of indexed models.
func (s *Store) Count() int { return s.Snapshot().Len() }

// Hash returns the content hash of the current snapshot ("" before the first load).
func (s *Store) Hash() string { return s.Snapshot().Hash }

// LastError returns the error recorded by the most recent load, if any.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Validators returns the stored ETag and Last-Modified values.
func (s *Store) Validators() (etag, lastModified string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.etag, s.lastModified
}
