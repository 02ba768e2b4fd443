package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/sdko-org/flathub-stats/internal/cache"
	"github.com/sdko-org/flathub-stats/internal/database"
	"github.com/sdko-org/flathub-stats/internal/logsource"
	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sdko-org/flathub-stats/internal/ostree"
	"github.com/sdko-org/flathub-stats/internal/pipeline"
	"github.com/sdko-org/flathub-stats/internal/stats"
	"github.com/sdko-org/flathub-stats/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newParseCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <log>...",
		Short: "Print the downloads found in the given logs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, stdout, stderr)
			if err != nil {
				return err
			}
			return a.parse(cmd.Context(), args, opts.jsonOut)
		},
	}
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print events as JSON lines")
	return cmd
}

func (a *app) parse(ctx context.Context, paths []string, jsonOut bool) error {
	events, failed := a.processLogs(ctx, paths)

	if err := writeEvents(a.stdout, events, jsonOut); err != nil {
		return err
	}
	if err := a.writeStats(ctx, events); err != nil {
		return err
	}
	if err := a.storeEvents(ctx, events); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSourcesFailed, failed, len(paths))
	}
	return nil
}

// processLogs runs every source in order against one commit cache and
// returns the concatenated events together with the number of sources that
// could not be processed.
func (a *app) processLogs(ctx context.Context, paths []string) ([]models.DownloadEvent, int) {
	log := a.logger.WithField("component", "cli")

	store, key, err := storage.ForPath(a.cfg, a.cfg.CachePath)
	if err != nil {
		log.WithError(err).Warn("Commit cache storage unavailable, using local path")
		store, key = storage.NewLocalStorage(), a.cfg.CachePath
	}

	client := ostree.NewClient(a.logger, a.cfg, ostree.GVariantDecoder{})
	commits := cache.Load(ctx, a.logger, client, store, key)
	commits.RefreshSummary(ctx)

	p := pipeline.New(a.logger, commits)
	var events []models.DownloadEvent
	failed := 0
	for _, path := range paths {
		evs, err := a.processLog(ctx, p, path)
		if err != nil {
			log.WithField("source", path).WithError(err).Error("Failed to process log")
			failed++
			continue
		}
		events = append(events, evs...)
	}

	if err := commits.Save(ctx); err != nil {
		log.WithError(err).Warn("Failed to save commit cache")
	}

	s := p.Stats()
	log.WithFields(logrus.Fields{
		"sources":      len(paths),
		"failed":       failed,
		"lines":        s.Lines,
		"malformed":    s.Malformed,
		"ignored":      s.Ignored,
		"unresolved":   s.Unresolved,
		"bad_timezone": s.BadTimezone,
		"bad_request":  s.BadRequest,
		"downloads":    s.Emitted,
	}).Info("Processing complete")
	return events, failed
}

func (a *app) processLog(ctx context.Context, p *pipeline.Pipeline, path string) ([]models.DownloadEvent, error) {
	rc, err := logsource.Open(ctx, a.cfg, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return p.Run(ctx, path, rc)
}

func (a *app) writeStats(ctx context.Context, events []models.DownloadEvent) error {
	if a.cfg.StatsDir == "" {
		return nil
	}
	store, prefix, err := storage.ForPath(a.cfg, a.cfg.StatsDir)
	if err != nil {
		return err
	}
	agg := stats.NewAggregator()
	agg.Add(events...)
	if err := agg.WriteJSON(ctx, store, prefix); err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"path": a.cfg.StatsDir,
		"days": len(agg.Days()),
	}).Info("Wrote daily statistics")
	return nil
}

func (a *app) storeEvents(ctx context.Context, events []models.DownloadEvent) error {
	if !a.cfg.PostgresEnabled {
		return nil
	}
	db, err := database.NewPostgresDB(a.logger, database.ConfigFrom(a.cfg))
	if err != nil {
		return err
	}
	return database.NewEventStore(a.logger, db).Save(ctx, events)
}

func writeEvents(w io.Writer, events []models.DownloadEvent, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		for i := range events {
			if err := enc.Encode(&events[i]); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ev := range events {
		if _, err := fmt.Fprintln(w, formatEvent(ev)); err != nil {
			return err
		}
	}
	return nil
}

// formatEvent renders an event as one tab-separated line. An unknown flatpak
// version is written as "-".
func formatEvent(ev models.DownloadEvent) string {
	flatpakVersion := ev.FlatpakVersion
	if flatpakVersion == "" {
		flatpakVersion = "-"
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s",
		ev.Checksum,
		ev.DateString(),
		ev.Ref,
		ev.OSTreeVersion,
		flatpakVersion,
		strconv.FormatBool(ev.IsDelta),
		strconv.FormatBool(ev.IsUpdate),
		ev.Country,
	)
}
