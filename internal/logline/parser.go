// Package logline parses CDN access log lines into access records.
package logline

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/sdko-org/flathub-stats/internal/models"
)

var ErrUnknownFormat = errors.New("unknown log format")

// Parser recognizes one access log format.
type Parser interface {
	Name() string
	Parse(line string) (models.AccessRecord, bool)
}

// 151.100.102.134 "-" "-" [05/Jun/2018:10:01:16 +0000] "GET /repo/objects/ca/717a...4085.filez HTTP/1.1" 200 822627 "" "libostree/2018.5 flatpak/0.11.7" "runtime/org.freedesktop.Sdk/x86_64/1.6" "" IT
var fastlyPattern = regexp.MustCompile(`^ ?` +
	`([\da-f.:]+)` + // source
	`\s"-"\s"-"\s` +
	`\[([^\]]+)\]\s` + // timestamp
	`"(\w+)\s([^\s"]+)\s([^"]+)"\s` + // method, path, protocol
	`(\d+)\s` + // status
	`([^\s]+)\s` + // size
	`"([^"]*)"\s` + // referrer
	`"([^"]*)"\s` + // user agent
	`"([^"]*)"\s` + // ref header
	`"([^"]*)"\s` + // update-from header
	`(\w+)`) // country

type regexpParser struct {
	name string
	re   *regexp.Regexp
}

func (p *regexpParser) Name() string {
	return p.name
}

func (p *regexpParser) Parse(line string) (models.AccessRecord, bool) {
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return models.AccessRecord{}, false
	}
	status, err := strconv.Atoi(m[6])
	if err != nil {
		return models.AccessRecord{}, false
	}
	size, err := strconv.ParseInt(m[7], 10, 64)
	if err != nil {
		size = -1
	}
	return models.AccessRecord{
		Source:     m[1],
		Timestamp:  m[2],
		Method:     m[3],
		Path:       m[4],
		Protocol:   m[5],
		Status:     status,
		Size:       size,
		Referrer:   m[8],
		UserAgent:  m[9],
		Ref:        m[10],
		UpdateFrom: m[11],
		Country:    m[12],
	}, true
}

// Fastly is the Fastly log streaming format used by the Flathub CDN.
var Fastly Parser = &regexpParser{name: "fastly", re: fastlyPattern}

var formats = []Parser{Fastly}

// Detect returns the first registered parser that accepts line.
func Detect(line string) (Parser, error) {
	for _, p := range formats {
		if _, ok := p.Parse(line); ok {
			return p, nil
		}
	}
	return nil, ErrUnknownFormat
}
