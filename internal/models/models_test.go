package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitRecord_NullFields(t *testing.T) {
	data, err := json.Marshal(CommitRecord{Ref: "app/org.foo/x86_64/stable"})
	require.NoError(t, err)
	assert.JSONEq(t, `["app/org.foo/x86_64/stable", null]`, string(data))

	var rec CommitRecord
	require.NoError(t, json.Unmarshal([]byte(`[null, "abcd"]`), &rec))
	assert.Equal(t, CommitRecord{RootDirtree: "abcd"}, rec)
}

func TestCommitRecord_RejectsLegacyAndShortPairs(t *testing.T) {
	var rec CommitRecord
	assert.Error(t, json.Unmarshal([]byte(`"app/org.foo/x86_64/stable"`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`["only-one"]`), &rec))
}

func TestDownloadEvent_DateString(t *testing.T) {
	ev := DownloadEvent{Date: time.Date(2018, time.June, 5, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2018/06/05", ev.DateString())
	assert.Equal(t, "download_events", ev.TableName())
}
