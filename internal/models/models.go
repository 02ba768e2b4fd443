package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in output and stats paths.
const DateLayout = "2006/01/02"

type DownloadEvent struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Checksum       string    `gorm:"type:char(64);not null;index" json:"checksum"`
	Date           time.Time `gorm:"type:date;not null;index" json:"date"`
	Ref            string    `gorm:"type:varchar(255);not null;index" json:"ref"`
	OSTreeVersion  string    `gorm:"type:varchar(32);not null" json:"ostree_version"`
	FlatpakVersion string    `gorm:"type:varchar(32)" json:"flatpak_version,omitempty"`
	IsDelta        bool      `gorm:"not null" json:"is_delta"`
	IsUpdate       bool      `gorm:"not null" json:"is_update"`
	Country        string    `gorm:"type:varchar(8);not null;index" json:"country"`
}

func (DownloadEvent) TableName() string {
	return "download_events"
}

func (e DownloadEvent) DateString() string {
	return e.Date.Format(DateLayout)
}

// CommitRecord is what the commit cache knows about one commit. Empty fields
// are unknown and persist as JSON null.
type CommitRecord struct {
	Ref         string
	RootDirtree string
}

func (r CommitRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*string{nullable(r.Ref), nullable(r.RootDirtree)})
}

func (r *CommitRecord) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return fmt.Errorf("commit record: expected [ref, dirtree] pair, got %s", data)
	}
	var pair []*string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("commit record: expected 2 elements, got %d", len(pair))
	}
	*r = CommitRecord{}
	if pair[0] != nil {
		r.Ref = *pair[0]
	}
	if pair[1] != nil {
		r.RootDirtree = *pair[1]
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
