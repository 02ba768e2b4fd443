package stats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sdko-org/flathub-stats/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appRef = "app/org.foo/x86_64/stable"

func event(day int, refName string, delta, update bool, country string) models.DownloadEvent {
	return models.DownloadEvent{
		Checksum:       "c0ffee",
		Date:           time.Date(2018, time.June, day, 0, 0, 0, 0, time.UTC),
		Ref:            refName,
		OSTreeVersion:  "2018.5",
		FlatpakVersion: "0.11.7",
		IsDelta:        delta,
		IsUpdate:       update,
		Country:        country,
	}
}

func sampleAggregator() *Aggregator {
	a := NewAggregator()
	a.Add(
		event(5, appRef, false, false, "IT"),
		event(5, appRef, true, true, "DE"),
		event(5, "runtime/org.bar/aarch64/1.0", false, true, "IT"),
		event(6, appRef, false, false, "US"),
	)
	return a
}

func TestAggregator_Day(t *testing.T) {
	a := sampleAggregator()
	assert.Equal(t, []string{"2018/06/05", "2018/06/06"}, a.Days())

	day, ok := a.Day("2018/06/05")
	require.True(t, ok)
	assert.Equal(t, Counts{Downloads: 3, Updates: 2, Deltas: 1}, day.Totals)
	assert.Equal(t, &Counts{Downloads: 2, Updates: 1, Deltas: 1}, day.Refs[appRef])
	assert.Equal(t, map[string]int{"IT": 2, "DE": 1}, day.Countries)
	assert.Equal(t, map[string]int{"x86_64": 2, "aarch64": 1}, day.Arches)
	assert.Equal(t, 3, day.FlatpakVersions["0.11.7"])

	_, ok = a.Day("2018/06/07")
	assert.False(t, ok)
}

func TestAggregator_RefHistory(t *testing.T) {
	a := sampleAggregator()
	assert.Equal(t, map[string]Counts{
		"2018/06/05": {Downloads: 2, Updates: 1, Deltas: 1},
		"2018/06/06": {Downloads: 1},
	}, a.RefHistory(appRef))
	assert.Empty(t, a.RefHistory("app/org.none/x86_64/stable"))
}

func TestAggregator_WriteJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sampleAggregator().WriteJSON(context.Background(), storage.NewLocalStorage(), dir))

	data, err := os.ReadFile(filepath.Join(dir, "2018", "06", "06.json"))
	require.NoError(t, err)
	var day DayStats
	require.NoError(t, json.Unmarshal(data, &day))
	assert.Equal(t, "2018/06/06", day.Date)
	assert.Equal(t, 1, day.Totals.Downloads)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2018/06/05")
	require.NoError(t, err)
	assert.Equal(t, time.June, d.Month())

	_, err = ParseDate("2018-06-05")
	assert.Error(t, err)
}
