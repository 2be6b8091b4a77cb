// Package web fetches pages over HTTP for ingestion.
package web

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers"
)

// Type is the connector type identifier.
const Type = "web"

// Defaults for Config.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 20 << 20
	UserAgent       = "thinkrag/1.0 (+https://github.com/weiranzhiqian/ThinkRAG)"
)

// Metadata keys set on fetched documents.
const (
	MetaFinalURL    = "final_url"
	MetaFetchedAt   = "fetched_at"
	MetaContentType = "content_type"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Config holds web connector settings.
type Config struct {
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxBytes caps the body size. Defaults to DefaultMaxBytes.
	MaxBytes int64

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Connector fetches a fixed list of URLs.
type Connector struct {
	urls     []string
	client   *http.Client
	maxBytes int64
}

// New creates a connector for the given URLs.
func New(urls []string, cfg Config) *Connector {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Connector{urls: urls, client: client, maxBytes: maxBytes}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return Type
}

// Validate checks every URL is absolute http or https.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, u := range c.urls {
		if err := ValidateURL(u); err != nil {
			return err
		}
	}
	return nil
}

// ValidateURL reports whether raw is an absolute http or https URL.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", domain.ErrInvalidInput, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) URL", domain.ErrInvalidInput, raw)
	}
	return nil
}

// IsURL reports whether s looks like a web address rather than a path.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FullSync fetches each URL in order. A failed fetch goes to the error
// channel and the remaining URLs are still fetched.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, len(c.urls)+1)

	go func() {
		defer close(docs)
		defer close(errs)

		for _, u := range c.urls {
			if err := ctx.Err(); err != nil {
				errs <- err
				return
			}
			doc, err := c.Fetch(ctx, u)
			if err != nil {
				logger.Warn("Fetch %s: %v", u, err)
				errs <- err
				continue
			}
			select {
			case docs <- *doc:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return docs, errs
}

// Fetch downloads one page.
func (c *Connector) Fetch(ctx context.Context, rawURL string) (*domain.RawDocument, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	logger.Debug("GET %s", rawURL)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.ProviderStatusError{Provider: "web", StatusCode: resp.StatusCode, Body: string(body)}
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(content)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidInput, rawURL, c.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	mimeType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mimeType = normalisers.DetectMIMEType(resp.Request.URL.Path, content)
	}

	return &domain.RawDocument{
		Name:     rawURL,
		URI:      rawURL,
		Kind:     domain.SourceKindURL,
		MIMEType: mimeType,
		Size:     int64(len(content)),
		Content:  content,
		Metadata: map[string]any{
			MetaFinalURL:    resp.Request.URL.String(),
			MetaFetchedAt:   time.Now().UTC().Format(time.RFC3339),
			MetaContentType: contentType,
		},
	}, nil
}

// Close releases idle connections.
func (c *Connector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
