package models

// AccessRecord is one parsed CDN access log line.
type AccessRecord struct {
	Source     string
	Timestamp  string
	Method     string
	Path       string
	Protocol   string
	Status     int
	Size       int64
	Referrer   string
	UserAgent  string
	Ref        string
	UpdateFrom string
	Country    string
}
