// Package stats aggregates download events into per-day summaries.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sdko-org/flathub-stats/internal/ref"
	"github.com/sdko-org/flathub-stats/internal/storage"
)

type Counts struct {
	Downloads int `json:"downloads"`
	Updates   int `json:"updates"`
	Deltas    int `json:"deltas"`
}

func (c *Counts) add(ev models.DownloadEvent) {
	c.Downloads++
	if ev.IsUpdate {
		c.Updates++
	}
	if ev.IsDelta {
		c.Deltas++
	}
}

type DayStats struct {
	Date            string             `json:"date"`
	Totals          Counts             `json:"totals"`
	Refs            map[string]*Counts `json:"refs"`
	Countries       map[string]int     `json:"countries"`
	Arches          map[string]int     `json:"arches"`
	FlatpakVersions map[string]int     `json:"flatpak_versions"`
	OSTreeVersions  map[string]int     `json:"ostree_versions"`
}

func newDayStats(date string) *DayStats {
	return &DayStats{
		Date:            date,
		Refs:            make(map[string]*Counts),
		Countries:       make(map[string]int),
		Arches:          make(map[string]int),
		FlatpakVersions: make(map[string]int),
		OSTreeVersions:  make(map[string]int),
	}
}

type Aggregator struct {
	days map[string]*DayStats
}

func NewAggregator() *Aggregator {
	return &Aggregator{days: make(map[string]*DayStats)}
}

func (a *Aggregator) Add(events ...models.DownloadEvent) {
	for _, ev := range events {
		date := ev.DateString()
		day, ok := a.days[date]
		if !ok {
			day = newDayStats(date)
			a.days[date] = day
		}

		day.Totals.add(ev)
		counts, ok := day.Refs[ev.Ref]
		if !ok {
			counts = &Counts{}
			day.Refs[ev.Ref] = counts
		}
		counts.add(ev)

		day.Countries[ev.Country]++
		day.OSTreeVersions[ev.OSTreeVersion]++
		if ev.FlatpakVersion != "" {
			day.FlatpakVersions[ev.FlatpakVersion]++
		}
		if r, err := ref.Parse(ev.Ref); err == nil {
			day.Arches[r.Arch]++
		}
	}
}

// Days returns the aggregated dates in ascending order.
func (a *Aggregator) Days() []string {
	days := make([]string, 0, len(a.days))
	for d := range a.days {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

func (a *Aggregator) Day(date string) (*DayStats, bool) {
	day, ok := a.days[date]
	return day, ok
}

// RefHistory returns the counts for one ref on each day it was downloaded.
func (a *Aggregator) RefHistory(name string) map[string]Counts {
	out := make(map[string]Counts)
	for date, day := range a.days {
		if c, ok := day.Refs[name]; ok {
			out[date] = *c
		}
	}
	return out
}

// WriteJSON stores each day as <prefix>/YYYY/MM/DD.json.
func (a *Aggregator) WriteJSON(ctx context.Context, store storage.Storage, prefix string) error {
	for _, date := range a.Days() {
		data, err := json.Marshal(a.days[date])
		if err != nil {
			return fmt.Errorf("encode %s: %w", date, err)
		}
		key := path.Join(prefix, date+".json")
		if err := store.Put(ctx, key, data, "application/json"); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

// ParseDate validates a YYYY/MM/DD date key.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(models.DateLayout, date)
}
