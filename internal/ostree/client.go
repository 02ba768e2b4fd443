// Package ostree fetches summary and commit objects from a remote OSTree
// repository over HTTP.
package ostree

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sdko-org/flathub-stats/internal/config"
	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Commit metadata keys that name the ref a commit was built for.
const (
	MetaXARef      = "xa.ref"
	MetaRefBinding = "ostree.ref-binding"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	decoder    Decoder
	limiter    *rate.Limiter
	log        *logrus.Entry
}

type loggingTransport struct {
	log  *logrus.Entry
	base http.RoundTripper
}

func NewClient(logger *logrus.Logger, cfg *config.Config, decoder Decoder) *Client {
	limit := rate.Inf
	if cfg.FetchRate > 0 {
		limit = rate.Limit(cfg.FetchRate)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
			Transport: &loggingTransport{
				log:  logger.WithField("component", "ostree_transport"),
				base: http.DefaultTransport,
			},
		},
		baseURL:   strings.TrimRight(cfg.RepoURL, "/"),
		userAgent: cfg.UserAgent,
		decoder:   decoder,
		limiter:   rate.NewLimiter(limit, max(cfg.FetchBurst, 1)),
		log:       logger.WithField("component", "ostree_client"),
	}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := t.log.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		log.WithError(err).Debug("HTTP request failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration":    time.Since(start),
	}).Debug("HTTP request completed")
	return resp, nil
}

// CommitPath is the repository-relative location of a commit object.
func CommitPath(commit string) string {
	return fmt.Sprintf("objects/%s/%s.commit", commit[0:2], commit[2:])
}

// FetchSummary returns the ref to head commit mapping published in the
// repository summary. Failures are logged and yield an empty map.
func (c *Client) FetchSummary(ctx context.Context) map[string]string {
	body, err := c.get(ctx, "summary")
	if err != nil {
		c.log.WithError(err).Warn("Failed to load summary")
		return map[string]string{}
	}
	refs, err := c.decoder.DecodeSummary(body)
	if err != nil {
		c.log.WithError(err).Warn("Failed to decode summary")
		return map[string]string{}
	}
	c.log.WithField("refs", len(refs)).Info("Loaded summary")
	return refs
}

// FetchCommit resolves the ref and root dirtree of commit. The ref comes from
// the commit metadata when present, otherwise from hint. Failures are logged
// and leave the unresolved fields empty.
func (c *Client) FetchCommit(ctx context.Context, commit, hint string) models.CommitRecord {
	log := c.log.WithField("commit", commit)
	rec := models.CommitRecord{Ref: hint}

	if len(commit) < 3 {
		log.Warn("Commit id too short to resolve")
		return rec
	}

	body, err := c.get(ctx, CommitPath(commit))
	if err != nil {
		log.WithError(err).Warn("Failed to fetch commit")
		return rec
	}
	obj, err := c.decoder.DecodeCommit(body)
	if err != nil {
		log.WithError(err).Warn("Failed to decode commit")
		return rec
	}

	if ref := refFromMetadata(obj.Metadata); ref != "" {
		rec.Ref = ref
	}
	rec.RootDirtree = obj.RootDirtree

	log.WithFields(logrus.Fields{
		"ref":     rec.Ref,
		"dirtree": rec.RootDirtree,
	}).Info("Resolved commit")
	return rec
}

// refFromMetadata prefers xa.ref over the first ostree.ref-binding entry.
func refFromMetadata(meta map[string]any) string {
	if ref, ok := meta[MetaXARef].(string); ok && ref != "" {
		return ref
	}
	switch bindings := meta[MetaRefBinding].(type) {
	case []any:
		if len(bindings) > 0 {
			if ref, ok := bindings[0].(string); ok {
				return ref
			}
		}
	case []string:
		if len(bindings) > 0 {
			return bindings[0]
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("request %s: empty body", path)
	}
	return body, nil
}
