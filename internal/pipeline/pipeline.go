// Package pipeline turns access records into download events, resolving the
// commit and ref each request belongs to through the commit cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sdko-org/flathub-stats/internal/cache"
	"github.com/sdko-org/flathub-stats/internal/logline"
	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sdko-org/flathub-stats/internal/ref"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnresolvedRef       = errors.New("unable to figure out ref for commit")
	ErrUnsupportedTimezone = errors.New("unhandled date timezone")
	ErrBadTimestamp        = errors.New("invalid timestamp")
	ErrBadDeltaID          = errors.New("invalid delta id")
)

const (
	deltasPrefix     = "/repo/deltas/"
	superblockSuffix = "/superblock"
	objectsPrefix    = "/repo/objects/"
	dirtreeSuffix    = ".dirtree"

	utcSuffix       = " +0000"
	timestampLayout = "02/Jan/2006:15:04:05"

	// Last libostree release whose user agent did not carry a version.
	defaultOSTreeVersion = "2017.15"
)

// Stats counts what happened to the lines of one run.
type Stats struct {
	Lines       int
	Malformed   int
	Ignored     int
	Unresolved  int
	BadTimezone int
	BadRequest  int
	Emitted     int
}

type Pipeline struct {
	cache *cache.CommitCache
	log   *logrus.Entry
	stats Stats
}

func New(logger *logrus.Logger, commits *cache.CommitCache) *Pipeline {
	return &Pipeline{
		cache: commits,
		log:   logger.WithField("component", "pipeline"),
	}
}

func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Run processes every line of one log source in order. It fails only when the
// source is not in a recognized format; bad lines are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, name string, r io.Reader) ([]models.DownloadEvent, error) {
	log := p.log.WithField("source", name)
	log.Info("Loading log")

	reader := logline.NewReader(r, log)
	malformedBefore := p.stats.Malformed
	defer func() {
		p.stats.Malformed = malformedBefore + reader.Malformed()
	}()

	var events []models.DownloadEvent
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		p.stats.Lines++

		ev, err := p.ProcessRecord(ctx, rec)
		if err != nil {
			p.count(err)
			log.WithFields(logrus.Fields{
				"path": rec.Path,
				"ref":  rec.Ref,
			}).WithError(err).Warn("Skipping line")
			continue
		}
		if ev == nil {
			p.stats.Ignored++
			continue
		}
		p.stats.Emitted++
		events = append(events, *ev)
	}

	log.WithField("downloads", len(events)).Info("Finished log")
	return events, nil
}

func (p *Pipeline) count(err error) {
	switch {
	case errors.Is(err, ErrUnresolvedRef):
		p.stats.Unresolved++
	case errors.Is(err, ErrUnsupportedTimezone):
		p.stats.BadTimezone++
	default:
		p.stats.BadRequest++
	}
}

// ProcessRecord resolves one access record. It returns (nil, nil) for
// requests that are not downloads, and an error for downloads that could not
// be attributed.
func (p *Pipeline) ProcessRecord(ctx context.Context, rec models.AccessRecord) (*models.DownloadEvent, error) {
	if rec.Method != http.MethodGet || rec.Status != http.StatusOK {
		return nil, nil
	}

	targetRef := rec.Ref
	// Cheap early exit for refs we never count, such as locales.
	if targetRef != "" && !ref.ShouldKeep(targetRef) {
		return nil, nil
	}

	// Make sure the current head of the branch is cached. Without it a
	// dirtree request cannot be mapped back to a commit unless the commit
	// was already seen for some other reason.
	if targetRef != "" {
		p.cache.UpdateFromSummary(ctx, targetRef)
	}

	var commit string
	isDelta := false
	switch {
	case isPathWithin(rec.Path, deltasPrefix, superblockSuffix):
		delta := strings.ReplaceAll(rec.Path[len(deltasPrefix):len(rec.Path)-len(superblockSuffix)], "/", "")
		target := delta
		if source, rest, found := strings.Cut(delta, "-"); found {
			isDelta = true
			if _, err := DeltaIDToCommit(source); err != nil {
				return nil, err
			}
			target = rest
		}
		var err error
		if commit, err = DeltaIDToCommit(target); err != nil {
			return nil, err
		}

	case isPathWithin(rec.Path, objectsPrefix, dirtreeSuffix):
		dirtree := strings.ReplaceAll(rec.Path[len(objectsPrefix):len(rec.Path)-len(dirtreeSuffix)], "/", "")
		commit = p.cache.LookupByDirtree(dirtree)
		if commit == "" {
			// Probably not a root dirtree.
			return nil, nil
		}

	default:
		return nil, nil
	}

	if !p.cache.HasCommit(commit) {
		p.cache.UpdateForCommit(ctx, commit, targetRef)
	}
	if targetRef == "" {
		targetRef = p.cache.LookupRef(commit)
	}
	if targetRef == "" {
		return nil, fmt.Errorf("%w %s", ErrUnresolvedRef, commit)
	}
	if !ref.ShouldKeep(targetRef) {
		return nil, nil
	}

	date, err := parseDate(rec.Timestamp)
	if err != nil {
		return nil, err
	}

	ostreeVersion, flatpakVersion := parseUserAgent(rec.UserAgent)

	return &models.DownloadEvent{
		Checksum:       commit,
		Date:           date,
		Ref:            targetRef,
		OSTreeVersion:  ostreeVersion,
		FlatpakVersion: flatpakVersion,
		IsDelta:        isDelta,
		IsUpdate:       isDelta || rec.UpdateFrom != "",
		Country:        rec.Country,
	}, nil
}

func isPathWithin(path, prefix, suffix string) bool {
	return len(path) >= len(prefix)+len(suffix) && strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
}

// parseDate returns the UTC calendar day of a log timestamp. Only UTC
// timestamps are accepted.
func parseDate(ts string) (time.Time, error) {
	local, ok := strings.CutSuffix(ts, utcSuffix)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnsupportedTimezone, ts)
	}
	t, err := time.Parse(timestampLayout, local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrBadTimestamp, ts)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func parseUserAgent(ua string) (ostreeVersion, flatpakVersion string) {
	ostreeVersion = defaultOSTreeVersion
	for _, token := range strings.Split(ua, " ") {
		if v, ok := strings.CutPrefix(token, "libostree/"); ok {
			ostreeVersion = v
		}
		if v, ok := strings.CutPrefix(token, "flatpak/"); ok {
			flatpakVersion = v
		}
	}
	return ostreeVersion, flatpakVersion
}
