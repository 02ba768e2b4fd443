package logline

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sdko-org/flathub-stats/internal/models"
	"github.com/sirupsen/logrus"
)

// Lines longer than this are consumed and counted as malformed.
const maxLineSize = 1 << 20

// Reader yields access records from one log source. The format is detected
// from the first non-empty line; lines that later fail to match are logged,
// counted and skipped.
type Reader struct {
	br        *bufio.Reader
	parser    Parser
	log       *logrus.Entry
	lineNo    int
	malformed int
	pending   *models.AccessRecord
}

func NewReader(r io.Reader, log *logrus.Entry) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), log: log}
}

// Format returns the detected parser, or nil before the first record.
func (r *Reader) Format() Parser {
	return r.parser
}

func (r *Reader) Malformed() int {
	return r.malformed
}

// Next returns the next record, io.EOF at the end of input, or an error
// wrapping ErrUnknownFormat if the first line is not recognized. Other errors
// come from the underlying reader.
func (r *Reader) Next() (models.AccessRecord, error) {
	if r.parser == nil {
		if err := r.detect(); err != nil {
			return models.AccessRecord{}, err
		}
	}
	if r.pending != nil {
		rec := *r.pending
		r.pending = nil
		return rec, nil
	}
	for {
		line, overlong, err := r.readLine()
		if err != nil {
			return models.AccessRecord{}, err
		}
		if !overlong {
			if rec, ok := r.parser.Parse(line); ok {
				return rec, nil
			}
		}
		r.malformed++
		log := r.log.WithField("line_no", r.lineNo)
		if overlong {
			log = log.WithField("overlong", true)
		} else {
			log = log.WithField("line", line)
		}
		log.Warn("Can't match line")
	}
}

func (r *Reader) detect() error {
	for {
		line, overlong, err := r.readLine()
		if err != nil {
			return err
		}
		if overlong {
			return fmt.Errorf("line %d: %w", r.lineNo, ErrUnknownFormat)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := Detect(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", r.lineNo, err)
		}
		rec, _ := p.Parse(line)
		r.parser = p
		r.pending = &rec
		r.log.WithField("format", p.Name()).Debug("Detected log format")
		return nil
	}
}

// readLine returns the next line without its terminator. A line over
// maxLineSize is read to its end and reported as overlong with no content.
// It returns io.EOF once the input is exhausted.
func (r *Reader) readLine() (string, bool, error) {
	var buf []byte
	n := 0
	for {
		chunk, err := r.br.ReadSlice('\n')
		n += len(chunk)
		if n <= maxLineSize+1 {
			buf = append(buf, chunk...)
		} else {
			buf = nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && n == 0 {
			return "", false, io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, fmt.Errorf("read line %d: %w", r.lineNo+1, err)
		}

		r.lineNo++
		if n > maxLineSize+1 {
			return "", true, nil
		}
		buf = bytes.TrimSuffix(buf, []byte("\n"))
		buf = bytes.TrimSuffix(buf, []byte("\r"))
		return string(buf), false, nil
	}
}
