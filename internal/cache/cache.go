// Package cache maps commit ids to the ref they belong to and their root
// dirtree, and back from root dirtrees to commits.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sdko-org/flathub-stats/internal/ref"
	"github.com/sdko-org/flathub-stats/internal/storage"
	"github.com/sirupsen/logrus"
)

var ErrPersist = errors.New("commit cache not saved")

// Fetcher resolves commits against the remote repository. Both calls are best
// effort and never fail.
type Fetcher interface {
	FetchSummary(ctx context.Context) map[string]string
	FetchCommit(ctx context.Context, commit, hint string) models.CommitRecord
}

type CommitCache struct {
	log     *logrus.Entry
	fetcher Fetcher
	store   storage.Storage
	key     string

	commits  map[string]models.CommitRecord
	dirtrees map[string]string
	summary  map[string]string
	modified bool
}

func New(logger *logrus.Logger, fetcher Fetcher, store storage.Storage, key string) *CommitCache {
	return &CommitCache{
		log:      logger.WithField("component", "commit_cache"),
		fetcher:  fetcher,
		store:    store,
		key:      key,
		commits:  make(map[string]models.CommitRecord),
		dirtrees: make(map[string]string),
	}
}

// Load reads the persisted cache at key. A missing or unreadable file gives an
// empty cache. Entries written by older versions, which stored a bare ref
// instead of a [ref, dirtree] pair, are re-resolved; entries whose ref is no
// longer worth keeping are pruned.
func Load(ctx context.Context, logger *logrus.Logger, fetcher Fetcher, store storage.Storage, key string) *CommitCache {
	c := New(logger, fetcher, store, key)
	log := c.log.WithField("path", key)

	data, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Warn("Failed to read commit cache, starting empty")
		}
		return c
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.WithError(err).Warn("Corrupt commit cache, starting empty")
		return c
	}

	c.commits = c.migrate(ctx, raw)
	c.rebuildDirtreeIndex()

	log.WithFields(logrus.Fields{
		"stored":  len(raw),
		"commits": len(c.commits),
	}).Info("Loaded commit cache")
	return c
}

// migrate builds the current-format map from the persisted entries.
func (c *CommitCache) migrate(ctx context.Context, raw map[string]json.RawMessage) map[string]models.CommitRecord {
	commits := make(map[string]models.CommitRecord, len(raw))

	for _, commit := range sortedKeys(raw) {
		var rec models.CommitRecord
		if err := json.Unmarshal(raw[commit], &rec); err == nil {
			commits[commit] = rec
			continue
		}

		var legacyRef string
		if err := json.Unmarshal(raw[commit], &legacyRef); err != nil || legacyRef == "" || !ref.ShouldKeep(legacyRef) {
			c.modified = true
			continue
		}
		rec = c.fetcher.FetchCommit(ctx, commit, legacyRef)
		c.modified = true
		if rec.Ref == "" {
			rec.Ref = legacyRef
		}
		if !ref.ShouldKeep(rec.Ref) {
			continue
		}
		commits[commit] = rec
	}

	return c.prune(commits)
}

// prune returns the entries of commits whose ref passes the keep policy.
func (c *CommitCache) prune(commits map[string]models.CommitRecord) map[string]models.CommitRecord {
	kept := make(map[string]models.CommitRecord, len(commits))
	for commit, rec := range commits {
		if ref.ShouldKeep(rec.Ref) {
			kept[commit] = rec
		}
	}
	if len(kept) != len(commits) {
		c.modified = true
	}
	return kept
}

func (c *CommitCache) rebuildDirtreeIndex() {
	c.dirtrees = make(map[string]string, len(c.commits))
	for _, commit := range sortedKeys(c.commits) {
		if dirtree := c.commits[commit].RootDirtree; dirtree != "" {
			c.dirtrees[dirtree] = commit
		}
	}
}

// RefreshSummary loads the repository summary used by UpdateFromSummary.
func (c *CommitCache) RefreshSummary(ctx context.Context) {
	c.summary = c.fetcher.FetchSummary(ctx)
}

// UpdateFromSummary resolves the current head of branch if it is not cached
// yet, so that later dirtree requests for that head can be attributed.
func (c *CommitCache) UpdateFromSummary(ctx context.Context, branch string) {
	commit, ok := c.summary[branch]
	if !ok || c.HasCommit(commit) {
		return
	}
	c.UpdateForCommit(ctx, commit, branch)
}

// UpdateForCommit resolves commit remotely and stores the result, replacing
// anything cached for it.
func (c *CommitCache) UpdateForCommit(ctx context.Context, commit, hint string) {
	c.log.WithField("commit", commit).Info("Resolving commit")
	rec := c.fetcher.FetchCommit(ctx, commit, hint)
	c.put(commit, rec)
}

func (c *CommitCache) put(commit string, rec models.CommitRecord) {
	old, existed := c.commits[commit]
	c.commits[commit] = rec
	if existed && old.RootDirtree != "" && old.RootDirtree != rec.RootDirtree && c.dirtrees[old.RootDirtree] == commit {
		c.reindexDirtree(old.RootDirtree)
	}
	if rec.RootDirtree != "" {
		c.dirtrees[rec.RootDirtree] = commit
	}
	c.modified = true
}

// reindexDirtree points dirtree at the commit that a fresh load would pick
// among those still sharing it, or removes it when none is left.
func (c *CommitCache) reindexDirtree(dirtree string) {
	owner := ""
	for commit, rec := range c.commits {
		if rec.RootDirtree == dirtree && commit > owner {
			owner = commit
		}
	}
	if owner == "" {
		delete(c.dirtrees, dirtree)
		return
	}
	c.dirtrees[dirtree] = owner
}

func (c *CommitCache) HasCommit(commit string) bool {
	_, ok := c.commits[commit]
	return ok
}

// LookupRef returns the cached ref of commit, or "" if unknown.
func (c *CommitCache) LookupRef(commit string) string {
	return c.commits[commit].Ref
}

// LookupByDirtree returns the commit whose root dirtree is dirtree, or "".
func (c *CommitCache) LookupByDirtree(dirtree string) string {
	return c.dirtrees[dirtree]
}

func (c *CommitCache) Len() int {
	return len(c.commits)
}

func (c *CommitCache) Modified() bool {
	return c.modified
}

// Commits returns a copy of the forward map.
func (c *CommitCache) Commits() map[string]models.CommitRecord {
	out := make(map[string]models.CommitRecord, len(c.commits))
	for k, v := range c.commits {
		out[k] = v
	}
	return out
}

// Save persists the cache if it changed since it was loaded. The cache only
// saves work on the next run, so callers log the error and carry on.
func (c *CommitCache) Save(ctx context.Context) error {
	if !c.modified {
		return nil
	}
	data, err := json.Marshal(c.commits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := c.store.Put(ctx, c.key, data, "application/json"); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	c.modified = false
	c.log.WithFields(logrus.Fields{
		"path":    c.key,
		"commits": len(c.commits),
	}).Info("Saved commit cache")
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
